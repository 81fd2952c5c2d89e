package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"previsioni/internal/artifact"
	"previsioni/internal/core"
	"previsioni/internal/features"
	"previsioni/internal/ml"
)

// ErrFitFailure wraps any failure raised while fitting the trained model.
var ErrFitFailure = errors.New("model fit failed")

// Reason names why a training run fell back to the baseline.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonEmpty            Reason = "empty"
	ReasonDateParse        Reason = "invalid_date"
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonFitFailure       Reason = "fit_failure"
)

// TrainResult describes the artifact a training run left in the store.
type TrainResult struct {
	Status core.TrainingStatus
	Reason Reason
	Mode   artifact.Mode
	Rows   int
	// Cause is the recovered error behind a fallback, if any.
	Cause error
}

// RunRecorder persists a log entry for each training run.
type RunRecorder interface {
	RecordTrainingRun(ctx context.Context, run core.TrainingRun) (core.TrainingRun, error)
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithRunRecorder logs every run through r.
func WithRunRecorder(r RunRecorder) TrainerOption {
	return func(t *Trainer) { t.recorder = r }
}

// WithRegressor replaces the trained model factory.
func WithRegressor(f func() ml.Regressor) TrainerOption {
	return func(t *Trainer) { t.newRegressor = f }
}

// OnTrained registers a hook that runs after an artifact has been saved.
func OnTrained(fn func()) TrainerOption {
	return func(t *Trainer) { t.hooks = append(t.hooks, fn) }
}

// Trainer fits a model from transactions and overwrites the artifact slot.
// Calls to Train are serialized.
type Trainer struct {
	store        artifact.Store
	baseline     *BaselineBuilder
	newRegressor func() ml.Regressor
	recorder     RunRecorder
	hooks        []func()
	now          func() time.Time

	mu sync.Mutex
}

func NewTrainer(store artifact.Store, baseline *BaselineBuilder, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		store:    store,
		baseline: baseline,
		newRegressor: func() ml.Regressor {
			return ml.NewGradientBoostedRegressor()
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Train builds the monthly table from records and fits the boosted model on
// it. Empty, undated or too short histories and fitting failures fall back
// to the baseline. The returned error is non-nil only when no artifact could
// be saved.
func (t *Trainer) Train(ctx context.Context, records []core.Transaction) (TrainResult, error) {
	return t.train(ctx, "", records)
}

// TrainForUser is Train with the user recorded in the run log.
func (t *Trainer) TrainForUser(ctx context.Context, userID string, records []core.Transaction) (TrainResult, error) {
	return t.train(ctx, userID, records)
}

func (t *Trainer) train(ctx context.Context, userID string, records []core.Transaction) (TrainResult, error) {
	ctx, span := tracer.Start(ctx, "forecast.Train")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(records)))

	t.mu.Lock()
	defer t.mu.Unlock()

	a, res := t.fit(ctx, records)
	if a == nil {
		var err error
		a, err = t.baseline.Build()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "baseline build failed")
			return res, fmt.Errorf("build baseline: %w", err)
		}
	}

	if err := t.store.Save(ctx, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return res, fmt.Errorf("save artifact: %w", err)
	}

	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("reason", string(res.Reason)),
	)
	slog.InfoContext(ctx, "Model artifact saved",
		"status", res.Status,
		"mode", res.Mode,
		"rows", res.Rows,
		"location", t.store.Location())

	t.record(ctx, userID, res)
	for _, h := range t.hooks {
		h()
	}
	return res, nil
}

// fit returns the trained artifact, or nil with a fallback result.
func (t *Trainer) fit(ctx context.Context, records []core.Transaction) (*artifact.Artifact, TrainResult) {
	fallback := func(reason Reason, cause error) TrainResult {
		slog.WarnContext(ctx, "Training fell back to baseline model",
			"reason", reason,
			"records", len(records),
			"error", cause)
		return TrainResult{
			Status: core.StatusFallbackModelTrained,
			Reason: reason,
			Mode:   artifact.ModeBaseline,
			Cause:  cause,
		}
	}

	if len(records) == 0 {
		return nil, fallback(ReasonEmpty, features.ErrEmpty)
	}

	table, err := features.BuildTrainingTable(records)
	switch {
	case err == nil:
	case errors.Is(err, features.ErrInvalidDate):
		return nil, fallback(ReasonDateParse, err)
	case errors.Is(err, features.ErrInsufficientData):
		return nil, fallback(ReasonInsufficientData, err)
	case errors.Is(err, features.ErrEmpty):
		return nil, fallback(ReasonEmpty, err)
	default:
		return nil, fallback(ReasonFitFailure, err)
	}

	p, err := t.fitPipeline(table)
	if err != nil {
		res := fallback(ReasonFitFailure, err)
		res.Rows = len(table.Rows)
		return nil, res
	}
	return &artifact.Artifact{
			Pipeline:       p,
			FeatureColumns: table.Columns(),
			Mode:           artifact.ModeTrained,
			TrainedAt:      t.now().UTC(),
		}, TrainResult{
			Status: core.StatusTrainedUsingDB,
			Mode:   artifact.ModeTrained,
			Rows:   len(table.Rows),
		}
}

func (t *Trainer) fitPipeline(table *features.Table) (p *ml.Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: panic: %v", ErrFitFailure, r)
		}
	}()
	X, y := table.XY()
	p = ml.NewPipeline(t.newRegressor())
	if err := p.Fit(X, y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailure, err)
	}
	return p, nil
}

func (t *Trainer) record(ctx context.Context, userID string, res TrainResult) {
	if t.recorder == nil {
		return
	}
	_, err := t.recorder.RecordTrainingRun(ctx, core.TrainingRun{
		UserID: userID,
		Status: res.Status,
		Reason: string(res.Reason),
		Mode:   string(res.Mode),
		Rows:   res.Rows,
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to record training run", "error", err)
	}
}
