package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"previsioni/internal/core"
)

// SeedFile is the CSV read by NewFromDir. Columns: user_id,amount,category,date[,note].
const SeedFile = "seed_transactions.csv"

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

func New(seed []core.Transaction) *Store {
	return &Store{items: append([]core.Transaction(nil), seed...)}
}

// NewFromDir seeds the store from base/seed_transactions.csv. A missing file
// yields an empty store.
func NewFromDir(base string) (*Store, error) {
	f, err := os.Open(filepath.Join(base, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	seed, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

// ReadCSV parses transactions. A first row starting with "user_id" is
// treated as a header. Rows with an unparseable amount are skipped; dates are
// kept raw so that training can report them.
func ReadCSV(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []core.Transaction
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed line %d: %w", line, err)
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "user_id") {
			continue
		}
		if len(rec) < 4 || strings.HasPrefix(strings.TrimSpace(rec[0]), "#") {
			continue
		}
		amount, err := core.ParseAmount(rec[1])
		if err != nil {
			slog.Warn("Skipping seed row with invalid amount", "line", line, "amount", rec[1])
			continue
		}
		t := core.Transaction{
			UserID:   strings.TrimSpace(rec[0]),
			Amount:   amount,
			Category: strings.TrimSpace(rec[2]),
			Date:     strings.TrimSpace(rec[3]),
		}
		if len(rec) > 4 {
			t.Note = strings.TrimSpace(rec[4])
		}
		out = append(out, t)
	}
	return out, nil
}

// Append stores the transaction and returns a synthetic reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if userID == "" || t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}
