// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all service settings, grouped by concern.
type Configuration struct {
	Service       ServiceConfig
	Soniox        SonioxConfig
	Pipeline      PipelineConfig
	Storage       StorageConfig
	Audio         AudioConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service process.
type ServiceConfig struct {
	Name        string
	Principal   string
	Environment string
	HTTPPort    string
	STTProvider string // "soniox" or "mock"
}

// SonioxConfig holds remote STT provider settings.
type SonioxConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// PipelineConfig tunes the transcription pipeline.
type PipelineConfig struct {
	MaxAttempts            int
	PollInterval           time.Duration
	PollCeiling            time.Duration
	PollFailureLimit       int
	StaleAfter             time.Duration
	RetryInitialDelay      time.Duration
	RetryMaxDelay          time.Duration
	LanguageHints          []string
	SpeakerDiarization     bool
	LanguageIdentification bool
	DefaultContext         string
	SegmentMaxDuration     time.Duration
	SegmentMaxGap          time.Duration
}

// StorageConfig locates the relational store.
type StorageConfig struct {
	Path string
}

// AudioConfig locates the local audio cache.
type AudioConfig struct {
	CacheDir string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicStatus     string
	TopicTranscript string
	Principal       string
}

// ObservabilityConfig holds metrics/health server settings.
type ObservabilityConfig struct {
	HTTPAddr string
	LogLevel string
}

// Load reads the configuration from the environment, applying defaults for
// anything unset or unparsable.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-audiobook-transcription")

	return &Configuration{
		Service: ServiceConfig{
			Name:        envOrDefault("SERVICE_NAME", "audiobook-transcription-service"),
			Principal:   principal,
			Environment: envOrDefault("ENV", "dev"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			STTProvider: envOrDefault("STT_PROVIDER", "mock"),
		},
		Soniox: SonioxConfig{
			BaseURL:        envOrDefault("SONIOX_BASE_URL", "https://api.soniox.com"),
			APIKey:         os.Getenv("SONIOX_API_KEY"),
			Model:          envOrDefault("SONIOX_MODEL", "stt-async-preview"),
			RequestTimeout: envOrDefaultDuration("SONIOX_REQUEST_TIMEOUT", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:            envOrDefaultInt("PIPELINE_MAX_ATTEMPTS", 3),
			PollInterval:           envOrDefaultDuration("PIPELINE_POLL_INTERVAL", 2*time.Second),
			PollCeiling:            envOrDefaultDuration("PIPELINE_POLL_CEILING", time.Hour),
			PollFailureLimit:       envOrDefaultInt("PIPELINE_POLL_FAILURE_LIMIT", 5),
			StaleAfter:             envOrDefaultDuration("PIPELINE_STALE_AFTER", 30*time.Minute),
			RetryInitialDelay:      envOrDefaultDuration("PIPELINE_RETRY_INITIAL_DELAY", 5*time.Second),
			RetryMaxDelay:          envOrDefaultDuration("PIPELINE_RETRY_MAX_DELAY", 300*time.Second),
			LanguageHints:          envOrDefaultSlice("PIPELINE_LANGUAGE_HINTS", nil),
			SpeakerDiarization:     envOrDefaultBool("PIPELINE_SPEAKER_DIARIZATION", true),
			LanguageIdentification: envOrDefaultBool("PIPELINE_LANGUAGE_IDENTIFICATION", true),
			DefaultContext:         os.Getenv("PIPELINE_DEFAULT_CONTEXT"),
			SegmentMaxDuration:     envOrDefaultDuration("SEGMENT_MAX_DURATION", 20*time.Second),
			SegmentMaxGap:          envOrDefaultDuration("SEGMENT_MAX_GAP", 0),
		},
		Storage: StorageConfig{
			Path: envOrDefault("STORAGE_PATH", "data/transcription.db"),
		},
		Audio: AudioConfig{
			CacheDir: envOrDefault("AUDIO_CACHE_DIR", "data/audio"),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultSlice("KAFKA_BROKERS", nil),
			TopicStatus:     envOrDefault("KAFKA_TOPIC_STATUS", "transcription.job.status"),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "transcription.transcript.completed"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			HTTPAddr: envOrDefault("OBSERVABILITY_HTTP_ADDR", ":9090"),
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
