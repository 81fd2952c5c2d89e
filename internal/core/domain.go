package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TrainingStatus is the outcome reported by a training run.
type TrainingStatus string

const (
	StatusFallbackModelTrained TrainingStatus = "fallback_model_trained"
	StatusTrainedUsingDB       TrainingStatus = "trained_using_db"
)

// Column names of the supervised monthly table.
const (
	ColumnLastMonthExpense = "last_month_expense"
	ColumnMeanExpense      = "mean_expense"
	ColumnTotalExpense     = "total_expense"
)

type (
	// Transaction is a single spending record as read from a data source.
	// Date is kept raw; it is parsed when the monthly table is built.
	Transaction struct {
		UserID   string
		Amount   decimal.Decimal
		Category string
		Date     string
		Note     string
	}

	// Features are caller-supplied model inputs keyed by column name.
	// A nil value means "not provided".
	Features map[string]*float64
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyUserID   = errors.New("empty user id")
	ErrEmptyCategory = errors.New("empty category")
)

// dateLayouts are tried in order by ParseDate. Slash dates are read month
// first; day first is only reached when the first field exceeds 12.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"2006-01",
}

// ParseDate parses the date formats accepted for transactions. A value with
// an offset keeps it, so its calendar month is the one written in the record.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Validate checks a transaction before it is stored. Training itself
// tolerates bad records and reports them through its fallback path.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUserID
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	return nil
}

// Float returns f as a Features value.
func Float(f float64) *float64 {
	return &f
}

// TrainingRun is the log entry written for every training attempt.
type TrainingRun struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Status    TrainingStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Mode      string         `json:"mode"`
	Rows      int            `json:"rows"`
	CreatedAt time.Time      `json:"created_at"`
}
