package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Timestamp scans SQLite datetime columns, which the driver may hand back
// either as time.Time or as text depending on the declared column type.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Expense struct {
	ID          int64
	UserID      string
	Amount      string
	Category    string
	ExpenseDate string
	Note        string
	CreatedAt   Timestamp
}

type CreateExpenseParams struct {
	UserID      string
	Amount      string
	Category    string
	ExpenseDate string
	Note        string
}

const createExpense = `INSERT INTO expenses (user_id, amount, category, expense_date, note)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, amount, category, expense_date, note, created_at`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense, arg.UserID, arg.Amount, arg.Category, arg.ExpenseDate, arg.Note)
	var i Expense
	err := row.Scan(&i.ID, &i.UserID, &i.Amount, &i.Category, &i.ExpenseDate, &i.Note, &i.CreatedAt)
	return i, err
}

const listExpenses = `SELECT id, user_id, amount, category, expense_date, note, created_at
FROM expenses
WHERE (? = '' OR user_id = ?)
ORDER BY expense_date, id`

func (q *Queries) ListExpenses(ctx context.Context, userID string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.ID, &i.UserID, &i.Amount, &i.Category, &i.ExpenseDate, &i.Note, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countExpenses = `SELECT COUNT(*) FROM expenses`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpenses).Scan(&n)
	return n, err
}

type ModelArtifact struct {
	Slot           string
	Payload        []byte
	Mode           string
	FeatureColumns string
	UpdatedAt      Timestamp
}

const getModelArtifact = `SELECT slot, payload, mode, feature_columns, updated_at
FROM model_artifacts WHERE slot = ?`

func (q *Queries) GetModelArtifact(ctx context.Context, slot string) (ModelArtifact, error) {
	var i ModelArtifact
	err := q.db.QueryRowContext(ctx, getModelArtifact, slot).Scan(&i.Slot, &i.Payload, &i.Mode, &i.FeatureColumns, &i.UpdatedAt)
	return i, err
}

type UpsertModelArtifactParams struct {
	Slot           string
	Payload        []byte
	Mode           string
	FeatureColumns string
}

const upsertModelArtifact = `INSERT INTO model_artifacts (slot, payload, mode, feature_columns, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(slot) DO UPDATE SET
    payload = excluded.payload,
    mode = excluded.mode,
    feature_columns = excluded.feature_columns,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertModelArtifact(ctx context.Context, arg UpsertModelArtifactParams) error {
	_, err := q.db.ExecContext(ctx, upsertModelArtifact, arg.Slot, arg.Payload, arg.Mode, arg.FeatureColumns)
	return err
}

const modelArtifactExists = `SELECT COUNT(*) FROM model_artifacts WHERE slot = ?`

func (q *Queries) ModelArtifactExists(ctx context.Context, slot string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, modelArtifactExists, slot).Scan(&n)
	return n > 0, err
}

type TrainingRun struct {
	ID        int64
	UserID    string
	Status    string
	Reason    string
	Mode      string
	Rows      int64
	CreatedAt Timestamp
}

type CreateTrainingRunParams struct {
	UserID string
	Status string
	Reason string
	Mode   string
	Rows   int64
}

const createTrainingRun = `INSERT INTO training_runs (user_id, status, reason, mode, rows)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, status, reason, mode, rows, created_at`

func (q *Queries) CreateTrainingRun(ctx context.Context, arg CreateTrainingRunParams) (TrainingRun, error) {
	row := q.db.QueryRowContext(ctx, createTrainingRun, arg.UserID, arg.Status, arg.Reason, arg.Mode, arg.Rows)
	var i TrainingRun
	err := row.Scan(&i.ID, &i.UserID, &i.Status, &i.Reason, &i.Mode, &i.Rows, &i.CreatedAt)
	return i, err
}

const listTrainingRuns = `SELECT id, user_id, status, reason, mode, rows, created_at
FROM training_runs
ORDER BY id DESC
LIMIT ?`

func (q *Queries) ListTrainingRuns(ctx context.Context, limit int64) ([]TrainingRun, error) {
	rows, err := q.db.QueryContext(ctx, listTrainingRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrainingRun
	for rows.Next() {
		var i TrainingRun
		if err := rows.Scan(&i.ID, &i.UserID, &i.Status, &i.Reason, &i.Mode, &i.Rows, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
