package google

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"previsioni/internal/core"
)

func TestParseTransactions(t *testing.T) {
	values := [][]interface{}{
		{"Date", "User", "Amount", "Category", "Note"},
		{"2025-01-03", "7", 12.5, "Groceries", "weekly"},
		{"2025-01-09", "7", "8,40", "Transport"},
		{"2025-02-01", "", 10, "Orphan"},
		{"2025-02-02", "9", "n/a", "Bad"},
		{"2025-02-03", "9", 100, "Rent", ""},
	}
	got, err := parseTransactions(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d: %+v", len(got), got)
	}
	if got[0].UserID != "7" || got[0].Date != "2025-01-03" || got[0].Note != "weekly" {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if !got[1].Amount.Equal(decimal.RequireFromString("8.4")) {
		t.Fatalf("comma amount: got %s", got[1].Amount)
	}
	if got[1].Note != "" {
		t.Fatalf("missing note cell should be empty, got %q", got[1].Note)
	}
}

func TestParseTransactionsJavaColumns(t *testing.T) {
	values := [][]interface{}{
		{"expense_id", "user_id", "category_name", "expense_amount", "expense_date"},
		{1, 3, "Food", "20.00", "2024-05-01"},
	}
	got, err := parseTransactions(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Food" || got[0].UserID != "3" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestParseTransactionsBadHeader(t *testing.T) {
	_, err := parseTransactions([][]interface{}{{"When", "Who"}})
	if err == nil || !strings.Contains(err.Error(), "unexpected expenses header") {
		t.Fatalf("expected header error, got %v", err)
	}
	got, err := parseTransactions(nil)
	if err != nil || got != nil {
		t.Fatalf("empty sheet should give no rows, got %v %v", got, err)
	}
}

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheet: "Expenses"}
	if _, err := c.ListTransactions(context.Background(), ""); err == nil {
		t.Fatal("expected error without service")
	}
	_, err := c.Append(context.Background(), core.Transaction{UserID: "u", Amount: decimal.NewFromInt(1), Category: "c", Date: "2024-01-01"})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}
