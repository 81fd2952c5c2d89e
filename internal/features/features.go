// Package features turns raw transactions into the supervised monthly table
// used to train the forecaster.
package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

// MinMonths is the smallest number of distinct months worth training on. The
// first month only seeds the lag, so the table then has MinMonths-1 rows.
const MinMonths = 3

var (
	ErrEmpty            = errors.New("no transactions")
	ErrInvalidDate      = errors.New("transaction date cannot be parsed")
	ErrInsufficientData = errors.New("insufficient monthly history")
)

// DateError reports the first transaction whose date could not be parsed.
type DateError struct {
	Index int
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("transaction %d: %s: %q", e.Index, ErrInvalidDate, e.Value)
}

func (e *DateError) Unwrap() error { return ErrInvalidDate }

// MonthTotal is the spending of one calendar month.
type MonthTotal struct {
	Month string // YYYY-MM
	Total decimal.Decimal
}

// MonthlyRow is one supervised example.
type MonthlyRow struct {
	Month            string
	TotalExpense     float64
	LastMonthExpense float64
	MeanExpense      float64
}

// Table is the training table in chronological order.
type Table struct {
	Rows []MonthlyRow
}

// Columns are the input columns of the table, in the order X uses them.
func (t *Table) Columns() []string {
	return []string{core.ColumnLastMonthExpense, core.ColumnMeanExpense}
}

// XY splits the table into inputs and target.
func (t *Table) XY() ([][]float64, []float64) {
	X := make([][]float64, len(t.Rows))
	y := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		X[i] = []float64{r.LastMonthExpense, r.MeanExpense}
		y[i] = r.TotalExpense
	}
	return X, y
}

// MonthlyTotals sums transactions per calendar month, oldest first. Months
// without transactions are not filled in.
func MonthlyTotals(records []core.Transaction) ([]MonthTotal, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	sums := make(map[string]decimal.Decimal)
	for i, r := range records {
		d, err := core.ParseDate(r.Date)
		if err != nil {
			return nil, &DateError{Index: i, Value: r.Date}
		}
		// Wall clock month of the record, whatever its offset.
		key := d.Format("2006-01")
		sums[key] = sums[key].Add(r.Amount)
	}
	out := make([]MonthTotal, 0, len(sums))
	for m, total := range sums {
		out = append(out, MonthTotal{Month: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// BuildTrainingTable aggregates records by month and derives, for each month
// after the first, the previous month's total and the cumulative mean of
// totals up to and including the month.
func BuildTrainingTable(records []core.Transaction) (*Table, error) {
	months, err := MonthlyTotals(records)
	if err != nil {
		return nil, err
	}
	if len(months) < MinMonths {
		return nil, fmt.Errorf("%w: %d distinct months, need %d", ErrInsufficientData, len(months), MinMonths)
	}

	t := &Table{}
	running := decimal.Zero
	for i, m := range months {
		running = running.Add(m.Total)
		if i == 0 {
			continue
		}
		mean := running.Div(decimal.NewFromInt(int64(i + 1)))
		t.Rows = append(t.Rows, MonthlyRow{
			Month:            m.Month,
			TotalExpense:     m.Total.InexactFloat64(),
			LastMonthExpense: months[i-1].Total.InexactFloat64(),
			MeanExpense:      mean.InexactFloat64(),
		})
	}
	return t, nil
}

// LatestInputs returns the model inputs describing the month that follows the
// given history: the most recent monthly total and the mean of all totals.
func LatestInputs(records []core.Transaction) (core.Features, error) {
	months, err := MonthlyTotals(records)
	if err != nil {
		return nil, err
	}
	running := decimal.Zero
	for _, m := range months {
		running = running.Add(m.Total)
	}
	last := months[len(months)-1].Total.InexactFloat64()
	mean := running.Div(decimal.NewFromInt(int64(len(months)))).InexactFloat64()
	return core.Features{
		core.ColumnLastMonthExpense: core.Float(last),
		core.ColumnMeanExpense:      core.Float(mean),
	}, nil
}
