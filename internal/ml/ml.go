// Package ml holds the small set of estimators the forecaster needs: a
// standard scaler, a constant regressor and gradient boosted regression trees,
// chained by a Pipeline that can be gob encoded.
package ml

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShape     = errors.New("shape mismatch")
	ErrNoSamples = errors.New("no samples")
	ErrNonFinite = errors.New("non-finite value in training data")
	ErrNotFitted = errors.New("estimator not fitted")

	ErrMalformedTree = errors.New("malformed regression tree")
)

// Regressor maps one scaled feature row to a prediction.
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(x []float64) float64
}

// Validator is implemented by regressors whose decoded state can be checked
// against the expected input width.
type Validator interface {
	Validate(numFeatures int) error
}

func init() {
	gob.Register(&ConstantRegressor{})
	gob.Register(&GradientBoostedRegressor{})
}

// NewDense copies rows into a matrix. Rows without any column yield a matrix
// of the same height and zero width, which only the constant regressor can
// fit.
func NewDense(rows [][]float64) (mat.Matrix, error) {
	if len(rows) == 0 {
		return nil, ErrNoSamples
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	if cols == 0 {
		return noColumns(len(rows)), nil
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// noColumns is an r x 0 matrix. gonum's Dense cannot have a zero dimension.
type noColumns int

func (n noColumns) Dims() (int, int) { return int(n), 0 }

func (n noColumns) At(int, int) float64 { panic(mat.ErrIndexOutOfRange) }

func (n noColumns) T() mat.Matrix { return mat.Transpose{Matrix: n} }

func checkXY(X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 {
		return 0, 0, ErrNoSamples
	}
	if r != len(y) {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrShape, r, len(y))
	}
	for i := 0; i < r; i++ {
		if !finite(y[i]) {
			return 0, 0, fmt.Errorf("%w: target row %d", ErrNonFinite, i)
		}
		for j := 0; j < c; j++ {
			if !finite(X.At(i, j)) {
				return 0, 0, fmt.Errorf("%w: row %d column %d", ErrNonFinite, i, j)
			}
		}
	}
	return r, c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
