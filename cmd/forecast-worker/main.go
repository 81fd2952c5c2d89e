package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"previsioni/internal/cli"
	applog "previsioni/internal/log"
	"previsioni/internal/services"
	"previsioni/internal/telemetry"
	"previsioni/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting previsioni worker")

	cfg := cli.LoadAndValidateConfig(logger)

	shutdownTracing, err := telemetry.Setup(context.Background(), "previsioni-worker", cfg.OTELEndpoint)
	if err != nil {
		logger.Error("Failed to initialize tracing", applog.FieldError, err)
		os.Exit(1)
	}

	stack, err := cli.Bootstrap(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize model stack", applog.FieldError, err)
		os.Exit(1)
	}
	defer stack.Close()

	scheduler := services.NewRetrainScheduler(
		services.RetrainerFunc(func(ctx context.Context, userID string) error {
			_, err := stack.Training.Retrain(ctx, userID)
			return err
		}),
		services.RetrainSchedulerConfig{Interval: cfg.RetrainInterval, RunOnStart: true},
	)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Retrain scheduler stop error", applog.FieldError, err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Tracing shutdown error", applog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := scheduler.Start(gctx); err != nil {
		logger.Error("Failed to start retrain scheduler", applog.FieldError, err)
		os.Exit(1)
	}

	if stack.Queue != nil {
		retrainWorker := worker.NewRetrainWorker(stack.Training)
		g.Go(func() error {
			return stack.Queue.ConsumeRetrain(gctx, retrainWorker.HandleRetrainMessage)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = scheduler.Stop(stopCtx)
		cancel()
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Worker shutdown complete")
}
