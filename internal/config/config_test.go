package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear relevant env vars
	envVars := []string{
		"SERVICE_PRINCIPAL", "SERVICE_NAME", "HTTP_PORT", "LOG_LEVEL",
		"STT_PROVIDER", "SONIOX_BASE_URL", "SONIOX_MODEL", "SONIOX_REQUEST_TIMEOUT",
		"PIPELINE_MAX_ATTEMPTS", "PIPELINE_POLL_INTERVAL", "PIPELINE_POLL_CEILING",
		"PIPELINE_RETRY_INITIAL_DELAY", "PIPELINE_RETRY_MAX_DELAY",
		"PIPELINE_SPEAKER_DIARIZATION", "SEGMENT_MAX_DURATION",
		"STORAGE_PATH", "AUDIO_CACHE_DIR", "KAFKA_ENABLED", "KAFKA_PRINCIPAL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-audiobook-transcription" {
		t.Errorf("expected default principal 'svc-audiobook-transcription', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default port '8080', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.STTProvider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.Service.STTProvider)
	}

	// Soniox defaults
	if cfg.Soniox.BaseURL != "https://api.soniox.com" {
		t.Errorf("expected default base URL, got %s", cfg.Soniox.BaseURL)
	}
	if cfg.Soniox.Model != "stt-async-preview" {
		t.Errorf("expected default model 'stt-async-preview', got %s", cfg.Soniox.Model)
	}
	if cfg.Soniox.RequestTimeout != 60*time.Second {
		t.Errorf("expected default request timeout 60s, got %v", cfg.Soniox.RequestTimeout)
	}

	// Pipeline defaults
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.PollInterval != 2*time.Second {
		t.Errorf("expected default poll interval 2s, got %v", cfg.Pipeline.PollInterval)
	}
	if cfg.Pipeline.RetryInitialDelay != 5*time.Second {
		t.Errorf("expected default retry initial delay 5s, got %v", cfg.Pipeline.RetryInitialDelay)
	}
	if cfg.Pipeline.RetryMaxDelay != 300*time.Second {
		t.Errorf("expected default retry max delay 300s, got %v", cfg.Pipeline.RetryMaxDelay)
	}
	if cfg.Pipeline.SpeakerDiarization != true {
		t.Errorf("expected default speaker diarization true, got %v", cfg.Pipeline.SpeakerDiarization)
	}
	if cfg.Pipeline.SegmentMaxDuration != 20*time.Second {
		t.Errorf("expected default segment max duration 20s, got %v", cfg.Pipeline.SegmentMaxDuration)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicStatus != "transcription.job.status" {
		t.Errorf("expected default status topic, got %s", cfg.Kafka.TopicStatus)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STT_PROVIDER", "soniox")
	os.Setenv("SONIOX_MODEL", "stt-async-v2")
	os.Setenv("SONIOX_REQUEST_TIMEOUT", "30s")
	os.Setenv("PIPELINE_MAX_ATTEMPTS", "5")
	os.Setenv("PIPELINE_POLL_INTERVAL", "500ms")
	os.Setenv("PIPELINE_LANGUAGE_HINTS", "en, de,ja")
	os.Setenv("PIPELINE_SPEAKER_DIARIZATION", "false")
	os.Setenv("SEGMENT_MAX_DURATION", "30s")
	os.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("STT_PROVIDER")
		os.Unsetenv("SONIOX_MODEL")
		os.Unsetenv("SONIOX_REQUEST_TIMEOUT")
		os.Unsetenv("PIPELINE_MAX_ATTEMPTS")
		os.Unsetenv("PIPELINE_POLL_INTERVAL")
		os.Unsetenv("PIPELINE_LANGUAGE_HINTS")
		os.Unsetenv("PIPELINE_SPEAKER_DIARIZATION")
		os.Unsetenv("SEGMENT_MAX_DURATION")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.HTTPPort)
	}
	if cfg.Service.STTProvider != "soniox" {
		t.Errorf("expected STT provider 'soniox', got %s", cfg.Service.STTProvider)
	}
	if cfg.Soniox.Model != "stt-async-v2" {
		t.Errorf("expected model 'stt-async-v2', got %s", cfg.Soniox.Model)
	}
	if cfg.Soniox.RequestTimeout != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %v", cfg.Soniox.RequestTimeout)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.PollInterval != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", cfg.Pipeline.PollInterval)
	}
	if len(cfg.Pipeline.LanguageHints) != 3 || cfg.Pipeline.LanguageHints[1] != "de" {
		t.Errorf("expected language hints [en de ja], got %v", cfg.Pipeline.LanguageHints)
	}
	if cfg.Pipeline.SpeakerDiarization != false {
		t.Errorf("expected speaker diarization false, got %v", cfg.Pipeline.SpeakerDiarization)
	}
	if cfg.Pipeline.SegmentMaxDuration != 30*time.Second {
		t.Errorf("expected segment max duration 30s, got %v", cfg.Pipeline.SegmentMaxDuration)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker-1:9092" {
		t.Errorf("expected two brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("PIPELINE_MAX_ATTEMPTS", "not-a-number")
	os.Setenv("PIPELINE_POLL_INTERVAL", "invalid")
	os.Setenv("PIPELINE_SPEAKER_DIARIZATION", "invalid")
	os.Setenv("SEGMENT_MAX_DURATION", "invalid")

	defer func() {
		os.Unsetenv("PIPELINE_MAX_ATTEMPTS")
		os.Unsetenv("PIPELINE_POLL_INTERVAL")
		os.Unsetenv("PIPELINE_SPEAKER_DIARIZATION")
		os.Unsetenv("SEGMENT_MAX_DURATION")
	}()

	cfg := Load()

	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("expected default max attempts on invalid input, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.PollInterval != 2*time.Second {
		t.Errorf("expected default poll interval on invalid input, got %v", cfg.Pipeline.PollInterval)
	}
	if cfg.Pipeline.SpeakerDiarization != true {
		t.Errorf("expected default speaker diarization on invalid input, got %v", cfg.Pipeline.SpeakerDiarization)
	}
	if cfg.Pipeline.SegmentMaxDuration != 20*time.Second {
		t.Errorf("expected default segment max duration on invalid input, got %v", cfg.Pipeline.SegmentMaxDuration)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultSlice(t *testing.T) {
	key := "TEST_SLICE_VAR"
	defer os.Unsetenv(key)

	os.Setenv(key, " a ,, b ,c")
	got := envOrDefaultSlice(key, nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("envOrDefaultSlice = %v, want [a b c]", got)
	}

	os.Setenv(key, " , ,")
	if got := envOrDefaultSlice(key, []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("all-blank value should fall back to default, got %v", got)
	}
}
