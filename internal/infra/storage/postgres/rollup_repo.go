package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tranqh/treasury-watcher/internal/rollup"
)

// RollupRepo implements rollup.Store using PostgreSQL.
type RollupRepo struct {
	db *DB
}

// NewRollupRepo creates a new PostgreSQL rollup repository.
func NewRollupRepo(db *DB) *RollupRepo {
	return &RollupRepo{db: db}
}

// LastRolledDay returns the progress marker, or found=false when the job has
// never run.
func (r *RollupRepo) LastRolledDay(ctx context.Context) (time.Time, bool, error) {
	var day time.Time
	err := r.db.GetContext(ctx, &day, `SELECT last_day FROM rollup_progress WHERE id = 1`)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query rollup progress: %w", err)
	}
	return day, true, nil
}

// FirstLedgerDay returns the UTC day of the oldest ledger record.
func (r *RollupRepo) FirstLedgerDay(ctx context.Context) (time.Time, bool, error) {
	var min sql.NullInt64
	err := r.db.GetContext(ctx, &min, `SELECT MIN("timestamp") FROM ledger`)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query first ledger day: %w", err)
	}
	if !min.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(min.Int64, 0).UTC(), true, nil
}

// AggregateDay groups ledger records in the inclusive timestamp window by
// (method, lowercased token), summing the raw magnitudes. NUMERIC arithmetic
// throughout; nothing touches floating point.
func (r *RollupRepo) AggregateDay(ctx context.Context, startTs, endTs int64) ([]rollup.Entry, error) {
	query := `
		SELECT method AS type_name,
		       LOWER(token_address) AS token,
		       SUM(amount_raw)::text AS total
		FROM ledger
		WHERE "timestamp" BETWEEN $1 AND $2
		GROUP BY method, LOWER(token_address)
		ORDER BY type_name, token
	`

	var entries []rollup.Entry
	if err := r.db.SelectContext(ctx, &entries, query, startTs, endTs); err != nil {
		return nil, fmt.Errorf("failed to aggregate day: %w", err)
	}
	return entries, nil
}

// InsertDay writes a day's entries insert-only and advances the progress
// marker, all in one transaction.
func (r *RollupRepo) InsertDay(ctx context.Context, day time.Time, entries []rollup.Entry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO daily_data (day, type_name, token, total)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day, type_name, token) DO NOTHING
	`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, insertQuery, day, e.TypeName, e.Token, e.Total); err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	progressQuery := `
		INSERT INTO rollup_progress (id, last_day) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE
		SET last_day = GREATEST(rollup_progress.last_day, EXCLUDED.last_day)
	`
	if _, err := tx.ExecContext(ctx, progressQuery, day); err != nil {
		return fmt.Errorf("failed to advance rollup progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit day: %w", err)
	}
	return nil
}
