package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// LedgerRepo implements storage.LedgerRepository using PostgreSQL.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new PostgreSQL ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

const upsertRecordQuery = `
	INSERT INTO ledger (
		id, tx_hash, block_number, log_index, "timestamp", event_topic,
		token_address, from_address, to_address, amount_raw, amount,
		is_outgoing, method
	) VALUES (
		:id, :tx_hash, :block_number, :log_index, :timestamp, :event_topic,
		:token_address, :from_address, :to_address, :amount_raw, :amount,
		:is_outgoing, :method
	)
	ON CONFLICT (id) DO UPDATE SET
		tx_hash       = EXCLUDED.tx_hash,
		block_number  = EXCLUDED.block_number,
		log_index     = EXCLUDED.log_index,
		"timestamp"   = EXCLUDED."timestamp",
		event_topic   = EXCLUDED.event_topic,
		token_address = EXCLUDED.token_address,
		from_address  = EXCLUDED.from_address,
		to_address    = EXCLUDED.to_address,
		amount_raw    = EXCLUDED.amount_raw,
		amount        = EXCLUDED.amount,
		is_outgoing   = EXCLUDED.is_outgoing,
		method        = EXCLUDED.method
`

// UpsertMany writes all records in one transaction, keyed by id. Re-ingesting
// an event replaces the row with identical content, so the call is idempotent.
func (r *LedgerRepo) UpsertMany(ctx context.Context, records map[string]*domain.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertRecordQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// MaxBlockNumber returns the highest ingested block number via an indexed
// aggregate, or found=false when the ledger is empty.
func (r *LedgerRepo) MaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	var max sql.NullInt64
	err := r.db.GetContext(ctx, &max, `SELECT MAX(block_number) FROM ledger`)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query max block: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

// GetByID retrieves one record, or nil when absent.
func (r *LedgerRepo) GetByID(ctx context.Context, id string) (*domain.LedgerRecord, error) {
	query := `
		SELECT id, tx_hash, block_number, log_index, "timestamp", event_topic,
		       token_address, from_address, to_address,
		       amount_raw::text AS amount_raw, amount::text AS amount,
		       is_outgoing, method
		FROM ledger WHERE id = $1
	`

	var rec domain.LedgerRecord
	err := r.db.GetContext(ctx, &rec, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}
