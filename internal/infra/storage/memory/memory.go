package memory

import (
	"context"
	"sync"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// LedgerRepo is an in-memory storage.LedgerRepository. Used when no database
// is configured and by tests.
type LedgerRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.LedgerRecord
}

// NewLedgerRepo creates an empty in-memory ledger.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{records: make(map[string]*domain.LedgerRecord)}
}

// UpsertMany stores copies of all records keyed by id.
func (r *LedgerRepo) UpsertMany(ctx context.Context, records map[string]*domain.LedgerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range records {
		cp := *rec
		r.records[id] = &cp
	}
	return nil
}

// MaxBlockNumber returns the highest stored block number.
func (r *LedgerRepo) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max uint64
	found := false
	for _, rec := range r.records {
		if !found || rec.BlockNumber > max {
			max = rec.BlockNumber
			found = true
		}
	}
	return max, found, nil
}

// Get retrieves one record, or nil when absent.
func (r *LedgerRepo) Get(id string) *domain.LedgerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// Len returns the number of stored records.
func (r *LedgerRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// All returns a snapshot of all stored records.
func (r *LedgerRepo) All() []*domain.LedgerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.LedgerRecord, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}
