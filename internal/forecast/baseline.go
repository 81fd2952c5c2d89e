// Package forecast manages the model lifecycle: building the baseline,
// training on monthly history and serving predictions that never fail.
package forecast

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"previsioni/internal/artifact"
	"previsioni/internal/ml"
	"previsioni/internal/reference"
)

var tracer = otel.Tracer("previsioni/forecast")

// BaselineBuilder fits the fallback estimator on the reference mean vector.
type BaselineBuilder struct {
	means *reference.MeanVector
	now   func() time.Time
}

func NewBaselineBuilder(means *reference.MeanVector) *BaselineBuilder {
	return &BaselineBuilder{means: means, now: time.Now}
}

// Build returns a scaler followed by a constant regressor that always
// predicts the reference target mean. Its feature columns are every
// non-target column of the mean vector, possibly none.
func (b *BaselineBuilder) Build() (*artifact.Artifact, error) {
	if b.means == nil || b.means.Target() == "" {
		return nil, fmt.Errorf("%w: target column missing", reference.ErrConfig)
	}
	cols := b.means.Features()
	row := make([]float64, len(cols))
	for i, c := range cols {
		row[i], _ = b.means.Value(c)
	}

	p := ml.NewPipeline(&ml.ConstantRegressor{})
	if err := p.Fit([][]float64{row}, []float64{b.means.TargetMean()}); err != nil {
		return nil, fmt.Errorf("fit baseline: %w", err)
	}
	return &artifact.Artifact{
		Pipeline:       p,
		FeatureColumns: cols,
		Mode:           artifact.ModeBaseline,
		TrainedAt:      b.now().UTC(),
	}, nil
}
