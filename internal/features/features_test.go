package features

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"previsioni/internal/core"
)

func tx(date string, amount int64) core.Transaction {
	return core.Transaction{UserID: "u1", Amount: decimal.NewFromInt(amount), Category: "misc", Date: date}
}

func TestBuildTrainingTable(t *testing.T) {
	records := []core.Transaction{
		tx("2024-03-05", 300),
		tx("2024-01-10", 60),
		tx("2024-01-20", 40),
		tx("2024-02-14", 200),
		tx("2024-04-01", 400),
	}
	table, err := BuildTrainingTable(records)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, MonthlyRow{Month: "2024-02", TotalExpense: 200, LastMonthExpense: 100, MeanExpense: 150}, table.Rows[0])
	assert.Equal(t, MonthlyRow{Month: "2024-03", TotalExpense: 300, LastMonthExpense: 200, MeanExpense: 200}, table.Rows[1])
	assert.Equal(t, MonthlyRow{Month: "2024-04", TotalExpense: 400, LastMonthExpense: 300, MeanExpense: 250}, table.Rows[2])

	X, y := table.XY()
	assert.Equal(t, [][]float64{{100, 150}, {200, 200}, {300, 250}}, X)
	assert.Equal(t, []float64{200, 300, 400}, y)
	assert.Equal(t, []string{"last_month_expense", "mean_expense"}, table.Columns())
}

func TestBuildTrainingTableSkipsGaps(t *testing.T) {
	records := []core.Transaction{
		tx("2023-11-01", 10),
		tx("2024-01-01", 20),
		tx("2024-05-01", 30),
		tx("2024-06-01", 40),
	}
	table, err := BuildTrainingTable(records)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "2024-01", table.Rows[0].Month)
	assert.Equal(t, 10.0, table.Rows[0].LastMonthExpense)
}

func TestBuildTrainingTableThreeMonths(t *testing.T) {
	table, err := BuildTrainingTable([]core.Transaction{tx("2024-01-01", 1), tx("2024-02-01", 2), tx("2024-03-01", 3)})
	require.NoError(t, err)
	assert.Len(t, table.Rows, MinMonths-1)
}

func TestMonthlyTotalsUsesRecordedMonth(t *testing.T) {
	months, err := MonthlyTotals([]core.Transaction{
		tx("2024-03-01T00:30:00+02:00", 10),
		tx("2024-02-29T23:30:00-05:00", 20),
		tx("2024-03-31T23:59:59Z", 5),
	})
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, "2024-02", months[0].Month)
	assert.True(t, decimal.NewFromInt(20).Equal(months[0].Total))
	assert.Equal(t, "2024-03", months[1].Month)
	assert.True(t, decimal.NewFromInt(15).Equal(months[1].Total))
}

func TestBuildTrainingTableErrors(t *testing.T) {
	cases := []struct {
		name    string
		records []core.Transaction
		want    error
	}{
		{"nil", nil, ErrEmpty},
		{"empty", []core.Transaction{}, ErrEmpty},
		{"bad date", []core.Transaction{tx("2024-01-01", 1), tx("someday", 2)}, ErrInvalidDate},
		{"two months", []core.Transaction{tx("2024-01-01", 1), tx("2024-02-01", 2)}, ErrInsufficientData},
		{"two months many records", []core.Transaction{tx("2024-01-01", 1), tx("2024-01-09", 1), tx("2024-02-01", 2), tx("2024-02-20", 5)}, ErrInsufficientData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildTrainingTable(tc.records)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDateErrorCarriesValue(t *testing.T) {
	_, err := BuildTrainingTable([]core.Transaction{tx("2024-01-01", 1), tx("31-31-2024", 2)})
	var de *DateError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 1, de.Index)
	assert.Equal(t, "31-31-2024", de.Value)
}

func TestLatestInputs(t *testing.T) {
	f, err := LatestInputs([]core.Transaction{tx("2024-01-01", 100), tx("2024-02-01", 300), tx("2024-02-11", 200)})
	require.NoError(t, err)
	assert.Equal(t, 500.0, *f[core.ColumnLastMonthExpense])
	assert.Equal(t, 300.0, *f[core.ColumnMeanExpense])
}
