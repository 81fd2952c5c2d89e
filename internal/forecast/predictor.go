package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"previsioni/internal/artifact"
	"previsioni/internal/core"
	"previsioni/internal/reference"
)

// Source tells which model produced a prediction.
type Source string

const (
	SourceTrained             Source = "trained"
	SourceBaseline            Source = "baseline"
	SourceUnpersistedBaseline Source = "baseline_unpersisted"
	SourceReferenceMean       Source = "reference_mean"
)

// Predictor serves predictions from the stored artifact. It never returns an
// error: missing inputs are filled from the reference means and invalid
// outputs are replaced by a safe value.
type Predictor struct {
	store    artifact.Store
	means    *reference.MeanVector
	baseline *BaselineBuilder
	loads    singleflight.Group
}

func NewPredictor(store artifact.Store, means *reference.MeanVector, baseline *BaselineBuilder) *Predictor {
	return &Predictor{store: store, means: means, baseline: baseline}
}

// Predict returns a finite, non-negative next-month expense estimate.
func (p *Predictor) Predict(ctx context.Context, in core.Features) float64 {
	v, _ := p.PredictWithSource(ctx, in)
	return v
}

// PredictWithSource is Predict plus the provenance of the value.
func (p *Predictor) PredictWithSource(ctx context.Context, in core.Features) (float64, Source) {
	ctx, span := tracer.Start(ctx, "forecast.Predict")
	defer span.End()

	a, src := p.load(ctx)
	if a == nil {
		span.SetAttributes(attribute.String("source", string(SourceReferenceMean)))
		return p.sanitize(math.NaN()), SourceReferenceMean
	}

	out, src := p.run(ctx, a, src, in)
	span.SetAttributes(
		attribute.String("source", string(src)),
		attribute.Float64("prediction", out),
	)
	return out, src
}

// run evaluates a on in. When the stored model fails at prediction time the
// value comes from a freshly built baseline instead.
func (p *Predictor) run(ctx context.Context, a *artifact.Artifact, src Source, in core.Features) (float64, Source) {
	raw, err := evaluate(a, p.assemble(a.FeatureColumns, in))
	if err == nil {
		return p.sanitize(raw), src
	}
	if src == SourceUnpersistedBaseline {
		slog.WarnContext(ctx, "Baseline prediction failed, using reference mean", "error", err)
		return p.sanitize(math.NaN()), SourceReferenceMean
	}

	slog.WarnContext(ctx, "Model prediction failed, using baseline",
		"location", p.store.Location(),
		"error", err)
	b, berr := p.baseline.Build()
	if berr != nil {
		slog.ErrorContext(ctx, "Baseline build failed", "error", berr)
		return p.sanitize(math.NaN()), SourceReferenceMean
	}
	return p.run(ctx, b, SourceUnpersistedBaseline, in)
}

// evaluate turns a panic inside the model into an error.
func evaluate(a *artifact.Artifact, row []float64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = math.NaN(), fmt.Errorf("%w: %v", artifact.ErrCorrupt, r)
		}
	}()
	return a.Pipeline.Predict(row)
}

// load reads the artifact, or builds an unpersisted baseline when the slot is
// empty or unreadable. Concurrent callers share one read.
func (p *Predictor) load(ctx context.Context) (*artifact.Artifact, Source) {
	v, err, _ := p.loads.Do("artifact", func() (any, error) {
		return p.store.Load(ctx)
	})
	if err == nil {
		a := v.(*artifact.Artifact)
		if a.Mode == artifact.ModeTrained {
			return a, SourceTrained
		}
		return a, SourceBaseline
	}

	slog.WarnContext(ctx, "Model artifact unavailable, using baseline",
		"location", p.store.Location(),
		"error", err)
	a, berr := p.baseline.Build()
	if berr != nil {
		slog.ErrorContext(ctx, "Baseline build failed", "error", berr)
		return nil, SourceReferenceMean
	}
	return a, SourceUnpersistedBaseline
}

// assemble orders inputs as the model expects: caller value, then reference
// mean, then zero.
func (p *Predictor) assemble(cols []string, in core.Features) []float64 {
	row := make([]float64, len(cols))
	for i, c := range cols {
		if v, ok := in[c]; ok && v != nil && !math.IsNaN(*v) {
			row[i] = *v
			continue
		}
		if m, ok := p.means.Value(c); ok && !math.IsNaN(m) {
			row[i] = m
			continue
		}
		row[i] = 0
	}
	return row
}

func (p *Predictor) sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = p.means.Overall()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
	}
	if v < 0 {
		return 0
	}
	return v
}
