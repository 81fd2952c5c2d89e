// Package source defines where transactions used for training come from.
package source

import (
	"context"

	"previsioni/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionSource lists transactions for a user; an empty userID lists
	// all of them.
	TransactionSource interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (ref string, err error)
	}

	// Store is a source that also accepts new transactions.
	Store interface {
		TransactionSource
		TransactionWriter
	}
)
