package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-15T10:00:00Z", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"2024-03-15 10:00:00", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), true},
		{"2024/03/15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"03/15/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"03/04/2024", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-01T00:30:00+02:00", time.Date(2024, 2, 29, 22, 30, 0, 0, time.UTC), true},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not-a-date", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestParseDateKeepsOffset(t *testing.T) {
	got, err := ParseDate("2024-03-01T00:30:00+02:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 1 {
		t.Fatalf("wall clock date = %v, want 2024-03-01", got)
	}
	if _, off := got.Zone(); off != 2*60*60 {
		t.Fatalf("offset = %d, want +02:00", off)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:   "42",
		Amount:   decimal.RequireFromString("12.50"),
		Category: "Food",
		Date:     "2024-01-10",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{UserID: "", Amount: decimal.NewFromInt(1), Category: "c", Date: "2024-01-01"}, ErrEmptyUserID},
		{Transaction{UserID: "u", Amount: decimal.Zero, Category: "c", Date: "2024-01-01"}, ErrInvalidAmount},
		{Transaction{UserID: "u", Amount: decimal.NewFromInt(-3), Category: "c", Date: "2024-01-01"}, ErrInvalidAmount},
		{Transaction{UserID: "u", Amount: decimal.NewFromInt(1), Category: " ", Date: "2024-01-01"}, ErrEmptyCategory},
		{Transaction{UserID: "u", Amount: decimal.NewFromInt(1), Category: "c", Date: "yesterday"}, ErrInvalidDate},
	}
	for i, tc := range bads {
		if err := tc.tx.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}
