package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"previsioni/internal/amqp"
	"previsioni/internal/core"
	"previsioni/internal/source"
)

// ErrQueueUnavailable is returned when no retrain queue is configured.
var ErrQueueUnavailable = errors.New("retrain queue not configured")

// ReasonNewExpense tags retrain requests triggered by expense intake.
const ReasonNewExpense = "new_expense"

// ExpenseService stores incoming expenses and asks for a retrain
type ExpenseService struct {
	writer    source.TransactionWriter
	publisher RetrainPublisher
}

func NewExpenseService(writer source.TransactionWriter, publisher RetrainPublisher) *ExpenseService {
	return &ExpenseService{
		writer:    writer,
		publisher: publisher,
	}
}

// CreateExpense validates and saves a transaction, then publishes a retrain
// request for its user. A publish failure is logged and does not fail the
// call since the transaction is already stored.
func (s *ExpenseService) CreateExpense(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	ref, err := s.writer.Append(ctx, t)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping retrain request", "ref", ref)
		return ref, nil
	}
	if err := s.publisher.PublishRetrain(ctx, amqp.NewRetrainMessage(t.UserID, ReasonNewExpense)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish retrain request",
			"ref", ref,
			"user_id", t.UserID,
			"error", err)
	}

	return ref, nil
}
