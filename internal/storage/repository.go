package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	version uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		version: version,
	}, nil
}

// SchemaVersion reports the migration level the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append stores one transaction and returns its id.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validate transaction: %w", err)
	}
	e, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      t.UserID,
		Amount:      t.Amount.StringFixed(2),
		Category:    t.Category,
		ExpenseDate: t.Date,
		Note:        t.Note,
	})
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount,
		"date", e.ExpenseDate)

	return strconv.FormatInt(e.ID, 10), nil
}

// ListTransactions returns the stored transactions of userID in date order.
// An empty userID returns every transaction.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, e := range rows {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("expense %d: parse amount %q: %w", e.ID, e.Amount, err)
		}
		out = append(out, core.Transaction{
			UserID:   e.UserID,
			Amount:   amount,
			Category: e.Category,
			Date:     e.ExpenseDate,
			Note:     e.Note,
		})
	}
	return out, nil
}

// CountTransactions returns the number of stored transactions.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// RecordTrainingRun appends a training log entry.
func (r *SQLiteRepository) RecordTrainingRun(ctx context.Context, run core.TrainingRun) (core.TrainingRun, error) {
	row, err := r.queries.CreateTrainingRun(ctx, CreateTrainingRunParams{
		UserID: run.UserID,
		Status: string(run.Status),
		Reason: run.Reason,
		Mode:   run.Mode,
		Rows:   int64(run.Rows),
	})
	if err != nil {
		return core.TrainingRun{}, fmt.Errorf("create training run: %w", err)
	}
	return toCoreRun(row), nil
}

// ListTrainingRuns returns the most recent training runs, newest first.
func (r *SQLiteRepository) ListTrainingRuns(ctx context.Context, limit int) ([]core.TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListTrainingRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	out := make([]core.TrainingRun, len(rows))
	for i, row := range rows {
		out[i] = toCoreRun(row)
	}
	return out, nil
}

func toCoreRun(row TrainingRun) core.TrainingRun {
	return core.TrainingRun{
		ID:        row.ID,
		UserID:    row.UserID,
		Status:    core.TrainingStatus(row.Status),
		Reason:    row.Reason,
		Mode:      row.Mode,
		Rows:      int(row.Rows),
		CreatedAt: row.CreatedAt.Time,
	}
}

// ArtifactStore returns the model artifact slot kept in this database.
func (r *SQLiteRepository) ArtifactStore(slot string) *ArtifactStore {
	if slot == "" {
		slot = DefaultArtifactSlot
	}
	return &ArtifactStore{db: r.db, slot: slot}
}
