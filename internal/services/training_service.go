package services

import (
	"context"
	"fmt"
	"log/slog"

	"previsioni/internal/amqp"
	"previsioni/internal/forecast"
	"previsioni/internal/source"
)

// RetrainPublisher queues a retrain request for the worker.
type RetrainPublisher interface {
	PublishRetrain(ctx context.Context, msg *amqp.RetrainMessage) error
}

// TrainingService feeds transactions from the configured source to the
// trainer, either inline or through the retrain queue.
type TrainingService struct {
	source    source.TransactionSource
	trainer   *forecast.Trainer
	publisher RetrainPublisher
}

// NewTrainingService wires a source to a trainer. publisher may be nil, in
// which case RequestRetrain reports ErrQueueUnavailable.
func NewTrainingService(src source.TransactionSource, trainer *forecast.Trainer, publisher RetrainPublisher) *TrainingService {
	return &TrainingService{
		source:    src,
		trainer:   trainer,
		publisher: publisher,
	}
}

// Retrain lists the transactions of userID (every user when empty) and
// trains on them. A source failure aborts the run and leaves the current
// artifact untouched; every other failure falls back to the baseline.
func (s *TrainingService) Retrain(ctx context.Context, userID string) (forecast.TrainResult, error) {
	records, err := s.source.ListTransactions(ctx, userID)
	if err != nil {
		return forecast.TrainResult{}, fmt.Errorf("list transactions: %w", err)
	}

	slog.InfoContext(ctx, "Retraining model",
		"user_id", userID,
		"records", len(records))

	res, err := s.trainer.TrainForUser(ctx, userID, records)
	if err != nil {
		return res, fmt.Errorf("train model: %w", err)
	}
	return res, nil
}

// RequestRetrain publishes a retrain request instead of training inline.
func (s *TrainingService) RequestRetrain(ctx context.Context, userID, reason string) error {
	if s.publisher == nil {
		return ErrQueueUnavailable
	}
	if err := s.publisher.PublishRetrain(ctx, amqp.NewRetrainMessage(userID, reason)); err != nil {
		return fmt.Errorf("publish retrain request: %w", err)
	}
	return nil
}
