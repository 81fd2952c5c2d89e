package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

// Source lists transactions from the expenses table joined with category.
type Source struct {
	db *DB
}

func NewSource(db *DB) *Source {
	return &Source{db: db}
}

const listExpenses = `
	SELECT e.user_id::text, e.expense_amount, COALESCE(c.category_name, ''), e.expense_date, COALESCE(e.note, '')
	FROM expenses e
	LEFT JOIN category c ON c.category_id = e.category_id
	WHERE $1 = '' OR e.user_id::text = $1
	ORDER BY e.expense_date, e.expense_id
`

func (s *Source) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, listExpenses, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t      core.Transaction
			amount decimal.NullDecimal
			date   time.Time
		)
		if err := rows.Scan(&t.UserID, &amount, &t.Category, &date, &t.Note); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if !amount.Valid {
			continue
		}
		t.Amount = amount.Decimal
		t.Date = date.Format("2006-01-02")
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
