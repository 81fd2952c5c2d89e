// Package reference loads the population reference table used to build the
// baseline estimator and to fill in missing prediction inputs.
package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrConfig reports a missing or unusable reference table. It is fatal at
// startup.
var ErrConfig = errors.New("reference table configuration error")

// DefaultExcluded are identifier columns that never take part in the mean.
var DefaultExcluded = []string{"month", "savings"}

// Options control how a reference table is interpreted.
type Options struct {
	TargetColumn string
	Exclude      []string
}

// Table is a parsed reference CSV. Cells that are empty or non numeric are
// stored as NaN.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Normalize lower-cases a column name and replaces spaces with underscores.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// LoadFile reads a reference table from disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: reference dataset not found at %s", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrConfig, path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a reference table with a header row.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: reference dataset is empty", ErrConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrConfig, err)
	}
	t := &Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row %d: %v", ErrConfig, len(t.Rows)+1, err)
		}
		row := make([]float64, len(t.Columns))
		for i := range row {
			row[i] = math.NaN()
			if i < len(rec) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err == nil {
					row[i] = v
				}
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: reference dataset has no rows", ErrConfig)
	}
	return t, nil
}

// MeanVector is the column-wise mean of a reference table after identifier
// columns are dropped. It is immutable once built.
type MeanVector struct {
	columns []string
	values  map[string]float64
	target  string
}

// NewMeanVector computes the mean of every numeric, non excluded column.
// Missing cells are skipped. Columns with no numeric value are dropped.
func NewMeanVector(t *Table, opts Options) (*MeanVector, error) {
	if t == nil || len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: reference dataset has no rows", ErrConfig)
	}
	targetName := opts.TargetColumn
	if targetName == "" {
		targetName = "total_expense"
	}
	exclude := opts.Exclude
	if exclude == nil {
		exclude = DefaultExcluded
	}
	skip := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		skip[Normalize(c)] = true
	}

	mv := &MeanVector{values: make(map[string]float64)}
	for i, col := range t.Columns {
		if skip[Normalize(col)] {
			continue
		}
		vals := make([]float64, 0, len(t.Rows))
		for _, row := range t.Rows {
			if !math.IsNaN(row[i]) {
				vals = append(vals, row[i])
			}
		}
		if len(vals) == 0 {
			continue
		}
		if _, dup := mv.values[col]; dup {
			continue
		}
		mv.columns = append(mv.columns, col)
		mv.values[col] = stat.Mean(vals, nil)
		if mv.target == "" && Normalize(col) == Normalize(targetName) {
			mv.target = col
		}
	}
	if mv.target == "" {
		return nil, fmt.Errorf("%w: target column %q not found in reference dataset", ErrConfig, targetName)
	}
	return mv, nil
}

// Load reads path and builds its mean vector.
func Load(path string, opts Options) (*MeanVector, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewMeanVector(t, opts)
}

// Target returns the name of the target column as it appears in the file.
func (m *MeanVector) Target() string { return m.target }

// TargetMean returns the mean of the target column.
func (m *MeanVector) TargetMean() float64 { return m.values[m.target] }

// Columns returns every column of the vector, target included, in file order.
func (m *MeanVector) Columns() []string {
	return append([]string(nil), m.columns...)
}

// Features returns the non target columns in file order.
func (m *MeanVector) Features() []string {
	out := make([]string, 0, len(m.columns))
	for _, c := range m.columns {
		if c != m.target {
			out = append(out, c)
		}
	}
	return out
}

// Value returns the mean for col.
func (m *MeanVector) Value(col string) (float64, bool) {
	v, ok := m.values[col]
	return v, ok
}

// Overall is the average of every value in the vector, target included.
func (m *MeanVector) Overall() float64 {
	vals := make([]float64, 0, len(m.columns))
	for _, c := range m.columns {
		vals = append(vals, m.values[c])
	}
	return floats.Sum(vals) / float64(len(vals))
}
