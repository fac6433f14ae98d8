// Package rollup implements the daily aggregation collaborator: it folds the
// ledger into per-day, per-(method, token) totals. It only reads the ledger's
// schema; the ingestion core knows nothing about it.
package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Entry is one per-day aggregate: the total raw amount moved through one
// (method selector, token) pair.
type Entry struct {
	TypeName string `db:"type_name"`
	Token    string `db:"token"`
	Total    string `db:"total"`
}

// MarshalJSON emits the downstream consumer shape:
// {"typeName": ..., "token": ..., "_sum": {"value": ...}}.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TypeName string `json:"typeName"`
		Token    string `json:"token"`
		Sum      struct {
			Value string `json:"value"`
		} `json:"_sum"`
	}{
		TypeName: e.TypeName,
		Token:    e.Token,
		Sum: struct {
			Value string `json:"value"`
		}{Value: e.Total},
	})
}

// Store is the persistence surface the job needs.
type Store interface {
	// LastRolledDay returns the most recent day already aggregated.
	LastRolledDay(ctx context.Context) (time.Time, bool, error)

	// FirstLedgerDay returns the UTC day of the oldest ledger record.
	FirstLedgerDay(ctx context.Context) (time.Time, bool, error)

	// AggregateDay groups ledger records in [startTs, endTs] by
	// (method, lowercased token), summing amount_raw.
	AggregateDay(ctx context.Context, startTs, endTs int64) ([]Entry, error)

	// InsertDay writes a day's entries (insert-only; existing rows are left
	// untouched) and advances the rollup progress marker.
	InsertDay(ctx context.Context, day time.Time, entries []Entry) error
}

// Job aggregates fully completed UTC days, resuming after the last rolled
// day and stopping at yesterday.
type Job struct {
	store Store
	log   *slog.Logger
}

// NewJob creates a rollup job.
func NewJob(store Store, log *slog.Logger) *Job {
	return &Job{store: store, log: log}
}

// Run aggregates all pending days as of now. Returns the number of days
// written.
func (j *Job) Run(ctx context.Context, now time.Time) (int, error) {
	start, ok, err := j.startDay(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		j.log.Info("ledger empty, nothing to aggregate")
		return 0, nil
	}

	// Only fully completed UTC days are aggregated.
	end := utcDay(now).AddDate(0, 0, -1)
	if start.After(end) {
		j.log.Info("already up to date", "last", start.AddDate(0, 0, -1).Format(time.DateOnly))
		return 0, nil
	}

	written := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		startTs, endTs := dayBounds(day)
		entries, err := j.store.AggregateDay(ctx, startTs, endTs)
		if err != nil {
			return written, fmt.Errorf("aggregate %s: %w", day.Format(time.DateOnly), err)
		}
		if err := j.store.InsertDay(ctx, day, entries); err != nil {
			return written, fmt.Errorf("insert %s: %w", day.Format(time.DateOnly), err)
		}
		j.log.Info("day aggregated", "day", day.Format(time.DateOnly), "entries", len(entries))
		written++
	}
	return written, nil
}

// startDay picks where to resume: the day after the last rolled day, else the
// first day the ledger covers.
func (j *Job) startDay(ctx context.Context) (time.Time, bool, error) {
	last, ok, err := j.store.LastRolledDay(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last rolled day: %w", err)
	}
	if ok {
		return utcDay(last).AddDate(0, 0, 1), true, nil
	}

	first, ok, err := j.store.FirstLedgerDay(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("first ledger day: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return utcDay(first), true, nil
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// dayBounds returns the inclusive [00:00:00, 23:59:59] unix bounds of a day.
func dayBounds(day time.Time) (int64, int64) {
	start := utcDay(day)
	return start.Unix(), start.Add(24*time.Hour - time.Second).Unix()
}
