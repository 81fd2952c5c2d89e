package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ConstantRegressor always predicts Value. Fit sets Value to the target mean.
type ConstantRegressor struct {
	Value float64
}

func (c *ConstantRegressor) Fit(X mat.Matrix, y []float64) error {
	if _, _, err := checkXY(X, y); err != nil {
		return err
	}
	var sum float64
	for _, v := range y {
		sum += v
	}
	c.Value = sum / float64(len(y))
	return nil
}

func (c *ConstantRegressor) Predict([]float64) float64 {
	return c.Value
}

func (c *ConstantRegressor) Validate(int) error {
	if !finite(c.Value) {
		return fmt.Errorf("%w: constant %v", ErrNonFinite, c.Value)
	}
	return nil
}
