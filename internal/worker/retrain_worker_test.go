package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"previsioni/internal/amqp"
	"previsioni/internal/core"
	"previsioni/internal/forecast"
)

type fakeTrainer struct {
	calls []string
	err   error
}

func (f *fakeTrainer) Retrain(_ context.Context, userID string) (forecast.TrainResult, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return forecast.TrainResult{}, f.err
	}
	return forecast.TrainResult{Status: core.StatusTrainedUsingDB, Rows: 4}, nil
}

func TestRetrainWorker_HandleRetrainMessage(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	trainer := &fakeTrainer{}
	w := NewRetrainWorker(trainer)
	w.now = func() time.Time { return base }

	early := &amqp.RetrainMessage{UserID: "u1", Reason: "new_expense", Timestamp: base.Add(-time.Minute)}
	if err := w.HandleRetrainMessage(ctx, early); err != nil {
		t.Fatalf("HandleRetrainMessage() error = %v", err)
	}

	// Published before the run above started: already covered.
	stale := &amqp.RetrainMessage{UserID: "u1", Timestamp: base.Add(-30 * time.Second)}
	if err := w.HandleRetrainMessage(ctx, stale); err != nil {
		t.Fatal(err)
	}

	// A different user is not covered by a u1 run.
	other := &amqp.RetrainMessage{UserID: "u2", Timestamp: base.Add(-30 * time.Second)}
	if err := w.HandleRetrainMessage(ctx, other); err != nil {
		t.Fatal(err)
	}

	// A full run covers every user.
	w.now = func() time.Time { return base.Add(time.Hour) }
	if err := w.HandleRetrainMessage(ctx, &amqp.RetrainMessage{Timestamp: base.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleRetrainMessage(ctx, &amqp.RetrainMessage{UserID: "u3", Timestamp: base.Add(2 * time.Minute)}); err != nil {
		t.Fatal(err)
	}

	want := []string{"u1", "u2", ""}
	if len(trainer.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", trainer.calls, want)
	}
	for i := range want {
		if trainer.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, trainer.calls[i], want[i])
		}
	}
}

func TestRetrainWorker_ErrorIsReturned(t *testing.T) {
	trainer := &fakeTrainer{err: errors.New("source down")}
	w := NewRetrainWorker(trainer)

	msg := amqp.NewRetrainMessage("u1", "manual")
	if err := w.HandleRetrainMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error")
	}
	// A failed run does not mark the request as covered.
	trainer.err = nil
	if err := w.HandleRetrainMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(trainer.calls) != 2 {
		t.Errorf("calls = %v", trainer.calls)
	}
}
