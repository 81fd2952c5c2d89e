package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column on its mean and divides by its
// population standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 {
		return ErrNoSamples
	}
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if !finite(mean) || !finite(std) {
			return fmt.Errorf("%w: column %d", ErrNonFinite, j)
		}
		s.Mean[j] = mean
		s.Scale[j] = std
		if std == 0 {
			s.Scale[j] = 1
		}
	}
	return nil
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		if s.Mean == nil {
			return nil, ErrNotFitted
		}
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformMatrix scales every row of X. A zero width X is returned as is.
func (s *StandardScaler) TransformMatrix(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, c, len(s.Mean))
	}
	if c == 0 {
		return X, nil
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}
