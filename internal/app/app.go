// Package app wires the service's components together.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"audiobook-transcription-service/internal/audio"
	"audiobook-transcription-service/internal/config"
	"audiobook-transcription-service/internal/events"
	"audiobook-transcription-service/internal/observability/logging"
	"audiobook-transcription-service/internal/service/pipeline"
	"audiobook-transcription-service/internal/service/segment"
	"audiobook-transcription-service/internal/service/stt"
	"audiobook-transcription-service/internal/service/stt/mock"
	"audiobook-transcription-service/internal/service/stt/soniox"
	"audiobook-transcription-service/internal/store"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime  time.Time
	Logger       zerolog.Logger
	Cfg          *config.Configuration
	Store        *store.Store
	Publisher    *events.Publisher
	Orchestrator *pipeline.Orchestrator
}

// New constructs a new Application from the provided configuration and
// wires store, STT client, publisher and orchestrator.
func New(cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.Store = st

	client, err := a.buildSTTClient()
	if err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicStatus:     cfg.Kafka.TopicStatus,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		Principal:       cfg.Kafka.Principal,
	})

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.MaxAttempts = cfg.Pipeline.MaxAttempts
	pipeCfg.PollInterval = cfg.Pipeline.PollInterval
	pipeCfg.PollCeiling = cfg.Pipeline.PollCeiling
	pipeCfg.PollFailureLimit = cfg.Pipeline.PollFailureLimit
	pipeCfg.StaleAfter = cfg.Pipeline.StaleAfter
	pipeCfg.RetryInitialDelay = cfg.Pipeline.RetryInitialDelay
	pipeCfg.RetryMaxDelay = cfg.Pipeline.RetryMaxDelay
	pipeCfg.LanguageHints = cfg.Pipeline.LanguageHints
	pipeCfg.SpeakerDiarization = cfg.Pipeline.SpeakerDiarization
	pipeCfg.LanguageIdentification = cfg.Pipeline.LanguageIdentification
	pipeCfg.DefaultContext = cfg.Pipeline.DefaultContext
	pipeCfg.Segmentation = segment.Options{
		MaxDurationMs: cfg.Pipeline.SegmentMaxDuration.Milliseconds(),
		MaxGapMs:      cfg.Pipeline.SegmentMaxGap.Milliseconds(),
	}

	resolver := audio.NewResolver(cfg.Audio.CacheDir)
	a.Orchestrator = pipeline.New(st, client, resolver, a.Publisher, pipeCfg)

	appLogger.Info().
		Str("sttProvider", cfg.Service.STTProvider).
		Str("storagePath", cfg.Storage.Path).
		Str("audioCacheDir", cfg.Audio.CacheDir).
		Msg("Audiobook transcription service application created")
	return a, nil
}

func (a *Application) buildSTTClient() (stt.Client, error) {
	switch a.Cfg.Service.STTProvider {
	case "soniox":
		if a.Cfg.Soniox.APIKey == "" {
			return nil, fmt.Errorf("SONIOX_API_KEY is required for the soniox provider")
		}
		return soniox.New(soniox.Config{
			BaseURL:        a.Cfg.Soniox.BaseURL,
			APIKey:         a.Cfg.Soniox.APIKey,
			Model:          a.Cfg.Soniox.Model,
			RequestTimeout: a.Cfg.Soniox.RequestTimeout,
		}), nil
	case "mock":
		return mock.New(mock.Script{}), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", a.Cfg.Service.STTProvider)
	}
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	format := "json"
	if a.Cfg.Service.Environment == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", a.Cfg.Observability.LogLevel).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Logger setup completed")
}

// Start resumes interrupted jobs and marks the service ready.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()

	resumed, err := a.Orchestrator.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resuming interrupted jobs: %w", err)
	}

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Int("resumedJobs", resumed).
		Msg("Audiobook transcription service starting")
	return nil
}

// Shutdown drains running jobs and closes external resources.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	if err := a.Orchestrator.Shutdown(ctx); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Orchestrator shutdown did not drain cleanly")
	}
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Error closing publisher")
	}
	if err := a.Store.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Error closing store")
	}

	shutdownLogger.Info().Msg("Audiobook transcription service shut down")
}
