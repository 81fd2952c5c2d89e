// Package cli provides the initialization shared by cmd/forecast,
// cmd/forecast-worker and cmd/forecastctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"previsioni/internal/amqp"
	"previsioni/internal/backend"
	"previsioni/internal/config"
	"previsioni/internal/forecast"
	applog "previsioni/internal/log"
	"previsioni/internal/reference"
	"previsioni/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger reads LOG_LEVEL and LOG_FORMAT directly so that configuration
// errors are already logged in the requested format. The returned logger is
// also installed as the slog default.
func SetupLogger(component string) *applog.Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return applog.Setup(level, os.Getenv("LOG_FORMAT"), component)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", applog.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadReference reads the reference dataset named by cfg.
func LoadReference(cfg *config.Config) (*reference.MeanVector, error) {
	means, err := reference.Load(cfg.ReferenceDatasetPath, reference.Options{
		TargetColumn: cfg.ReferenceTargetColumn,
		Exclude:      cfg.ReferenceExcludeColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("load reference dataset %s: %w", cfg.ReferenceDatasetPath, err)
	}
	return means, nil
}

// Stack is the model lifecycle wired from configuration.
type Stack struct {
	Backend   *backend.BackendResult
	Means     *reference.MeanVector
	Baseline  *forecast.BaselineBuilder
	Trainer   *forecast.Trainer
	Predictor *forecast.Predictor
	Training  *services.TrainingService
	// Queue is nil when AMQP_URL is not set.
	Queue *amqp.Client
}

// Bootstrap opens the configured backends, loads the reference means and
// builds the trainer, predictor and training service. opts are passed to the
// trainer after the run recorder.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...forecast.TrainerOption) (*Stack, error) {
	means, err := LoadReference(cfg)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	s := &Stack{
		Backend:  res,
		Means:    means,
		Baseline: forecast.NewBaselineBuilder(means),
	}
	s.Trainer = forecast.NewTrainer(res.Artifacts, s.Baseline,
		append([]forecast.TrainerOption{forecast.WithRunRecorder(res.Runs)}, opts...)...)
	s.Predictor = forecast.NewPredictor(res.Artifacts, means, s.Baseline)

	var publisher services.RetrainPublisher
	if cfg.AMQPURL != "" {
		s.Queue, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		publisher = s.Queue
	}
	s.Training = services.NewTrainingService(res.Source, s.Trainer, publisher)

	logger.Info("Model stack initialized",
		"data_backend", cfg.DataBackend,
		"artifact_backend", cfg.ArtifactBackend,
		applog.FieldArtifact, res.Artifacts.Location(),
		"reference_columns", len(means.Columns()),
		"queue", s.Queue != nil)
	return s, nil
}

// Close releases the queue connection and the backends.
func (s *Stack) Close() error {
	var qerr error
	if s.Queue != nil {
		qerr = s.Queue.Close()
	}
	if err := s.Backend.Close(); err != nil {
		return err
	}
	return qerr
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before done is closed.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
