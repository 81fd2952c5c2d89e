package ml

import "fmt"

// Pipeline scales a feature row and feeds it to a regressor.
type Pipeline struct {
	Scaler StandardScaler
	Model  Regressor
}

// NewPipeline wraps model behind a fresh scaler.
func NewPipeline(model Regressor) *Pipeline {
	return &Pipeline{Model: model}
}

// Fit fits the scaler on rows, then the regressor on the scaled rows.
func (p *Pipeline) Fit(rows [][]float64, y []float64) error {
	if p.Model == nil {
		return ErrNotFitted
	}
	X, err := NewDense(rows)
	if err != nil {
		return err
	}
	if _, _, err := checkXY(X, y); err != nil {
		return err
	}
	if err := p.Scaler.Fit(X); err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := p.Scaler.TransformMatrix(X)
	if err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	if err := p.Model.Fit(scaled, y); err != nil {
		return fmt.Errorf("fit model: %w", err)
	}
	return nil
}

// Predict returns the model output for one unscaled row.
func (p *Pipeline) Predict(x []float64) (float64, error) {
	if p.Model == nil {
		return 0, ErrNotFitted
	}
	scaled, err := p.Scaler.Transform(x)
	if err != nil {
		return 0, err
	}
	return p.Model.Predict(scaled), nil
}

// Validate checks that a decoded pipeline accepts rows of numFeatures values
// and that its model, when it can tell, is well formed for that width.
func (p *Pipeline) Validate(numFeatures int) error {
	if p.Model == nil {
		return ErrNotFitted
	}
	if len(p.Scaler.Mean) != numFeatures || len(p.Scaler.Scale) != numFeatures {
		return fmt.Errorf("%w: scaler has %d means and %d scales, want %d",
			ErrShape, len(p.Scaler.Mean), len(p.Scaler.Scale), numFeatures)
	}
	for j, sc := range p.Scaler.Scale {
		if !finite(sc) || sc == 0 || !finite(p.Scaler.Mean[j]) {
			return fmt.Errorf("%w: scaler column %d", ErrNonFinite, j)
		}
	}
	if v, ok := p.Model.(Validator); ok {
		return v.Validate(numFeatures)
	}
	return nil
}

// NumFeatures reports how many inputs the fitted scaler expects.
func (p *Pipeline) NumFeatures() int {
	return len(p.Scaler.Mean)
}
