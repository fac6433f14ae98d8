package cursor

import (
	"context"
	"fmt"
)

// LedgerMax is the slice of the ledger the resume derivation needs.
type LedgerMax interface {
	MaxBlockNumber(ctx context.Context) (uint64, bool, error)
}

// ResumePoint derives the next block to ingest from the ledger's maximum
// stored block number. The ledger is the durable cursor: nothing else is
// persisted. A fresh (empty) ledger starts at the current head; there is no
// historical backfill.
func ResumePoint(ctx context.Context, ledger LedgerMax, head uint64) (uint64, error) {
	max, found, err := ledger.MaxBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to derive resume point: %w", err)
	}
	if !found {
		return head, nil
	}
	return max + 1, nil
}
