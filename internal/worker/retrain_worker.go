package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"previsioni/internal/amqp"
	"previsioni/internal/forecast"
)

// Trainer runs a training pass for a user, or for everyone when userID is empty.
type Trainer interface {
	Retrain(ctx context.Context, userID string) (forecast.TrainResult, error)
}

// RetrainWorker handles retrain requests delivered over AMQP. Requests
// published before the last completed run that covers them are skipped, so a
// burst of new expenses costs one training pass.
type RetrainWorker struct {
	trainer Trainer
	now     func() time.Time

	mu        sync.Mutex
	lastStart map[string]time.Time
}

func NewRetrainWorker(trainer Trainer) *RetrainWorker {
	return &RetrainWorker{
		trainer:   trainer,
		now:       time.Now,
		lastStart: make(map[string]time.Time),
	}
}

// HandleRetrainMessage processes a single retrain request from AMQP
func (w *RetrainWorker) HandleRetrainMessage(ctx context.Context, msg *amqp.RetrainMessage) error {
	if w.covered(msg) {
		slog.DebugContext(ctx, "Skipping retrain request already covered by a later run",
			"user_id", msg.UserID,
			"reason", msg.Reason,
			"timestamp", msg.Timestamp)
		return nil
	}

	slog.InfoContext(ctx, "Processing retrain request",
		"user_id", msg.UserID,
		"reason", msg.Reason,
		"timestamp", msg.Timestamp)

	start := w.now()
	res, err := w.trainer.Retrain(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("retrain for %q: %w", msg.UserID, err)
	}

	w.mu.Lock()
	w.lastStart[msg.UserID] = start
	w.mu.Unlock()

	slog.InfoContext(ctx, "Retrain request completed",
		"user_id", msg.UserID,
		"status", res.Status,
		"reason", res.Reason,
		"rows", res.Rows,
		"duration", w.now().Sub(start))
	return nil
}

// covered reports whether a run for the same user, or a full run, started
// after msg was published.
func (w *RetrainWorker) covered(msg *amqp.RetrainMessage) bool {
	if msg.Timestamp.IsZero() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.lastStart[msg.UserID]; ok && msg.Timestamp.Before(t) {
		return true
	}
	if t, ok := w.lastStart[""]; ok && msg.UserID != "" && msg.Timestamp.Before(t) {
		return true
	}
	return false
}
