package storage

import (
	"context"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// LedgerRepository is the durable, keyed store of finalized transfer records.
// The ledger doubles as the cursor: the resume point is derived from the
// maximum stored block number.
type LedgerRepository interface {
	// UpsertMany writes records keyed by id with replace/insert-if-absent
	// semantics. Any record error fails the whole call; the caller must not
	// advance its cursor in that case.
	UpsertMany(ctx context.Context, records map[string]*domain.LedgerRecord) error

	// MaxBlockNumber returns the highest stored block number. The second
	// return is false when the ledger is empty.
	MaxBlockNumber(ctx context.Context) (uint64, bool, error)
}
