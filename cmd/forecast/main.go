package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"previsioni/internal/cli"
	"previsioni/internal/forecast"
	apphttp "previsioni/internal/http"
	applog "previsioni/internal/log"
	"previsioni/internal/services"
	"previsioni/internal/telemetry"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	shutdownTracing, err := telemetry.Setup(context.Background(), "previsioni", cfg.OTELEndpoint)
	if err != nil {
		logger.Error("Failed to initialize tracing", applog.FieldError, err)
		os.Exit(1)
	}

	// The server is built after the trainer; the hook only fires on requests.
	var srv *apphttp.Server
	stack, err := cli.Bootstrap(context.Background(), cfg, logger.Logger,
		forecast.OnTrained(func() {
			if srv != nil {
				srv.InvalidatePredictions()
			}
		}))
	if err != nil {
		logger.Error("Failed to initialize model stack", applog.FieldError, err)
		os.Exit(1)
	}
	defer stack.Close()

	var expenses *services.ExpenseService
	if stack.Backend.Writer != nil {
		var publisher services.RetrainPublisher
		if stack.Queue != nil {
			publisher = stack.Queue
		}
		expenses = services.NewExpenseService(stack.Backend.Writer, publisher)
	} else {
		logger.Info("Transaction source is read-only, expense intake disabled", "backend", cfg.DataBackend)
	}

	srv = apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Predictor:     stack.Predictor,
		Training:      stack.Training,
		Expenses:      expenses,
		Source:        stack.Backend.Source,
		Runs:          stack.Backend.Runs,
		Artifacts:     stack.Backend.Artifacts,
		ReferencePath: cfg.ReferenceDatasetPath,
		CacheSize:     cfg.PredictionCacheSize,
		CacheTTL:      cfg.PredictionCacheTTL,
		Logger:        logger.WithComponent(applog.ComponentHTTP),
	})

	if !stack.Backend.Artifacts.Exists(context.Background()) {
		logger.Warn("No model artifact found, serving the baseline until the first training run",
			applog.FieldArtifact, stack.Backend.Artifacts.Location())
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Tracing shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting previsioni server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
