package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tranqh/treasury-watcher/internal/core/cursor"
	"github.com/tranqh/treasury-watcher/internal/core/domain"
	"github.com/tranqh/treasury-watcher/internal/infra/storage"
	"github.com/tranqh/treasury-watcher/internal/obs"
)

// FailedRanges records batch ranges that failed, for operator visibility.
// Optional: the loop works without one.
type FailedRanges interface {
	Record(ctx context.Context, from, to uint64, reason string) error
	Resolve(ctx context.Context, from, to uint64) error
}

// Config holds the ingestion loop's dependencies and tuning.
type Config struct {
	Chain  ChainReader
	Ledger storage.LedgerRepository
	Failed FailedRanges // may be nil

	BatchSize     uint64
	Confirmations uint64
	PollInterval  time.Duration
	CycleDelay    time.Duration

	// MaxLogRetries bounds re-attempts per record within a batch.
	MaxLogRetries int

	// EnrichConcurrency bounds parallel enrichment within a batch.
	// 1 processes logs sequentially.
	EnrichConcurrency int
}

// Status is a snapshot of the loop's position.
type Status struct {
	Cursor    uint64 `json:"cursor"`
	ChainHead uint64 `json:"chainHead"`
	Running   bool   `json:"running"`
}

// Loop orchestrates batched ingestion over the confirmed block range. It owns
// the in-memory cursor; the durable cursor is the ledger itself, so the loop
// never persists its position directly.
type Loop struct {
	cfg        Config
	classifier *Classifier
	enricher   *Enricher
	log        *slog.Logger

	cursor  uint64
	head    atomic.Uint64
	curSnap atomic.Uint64
	running atomic.Bool
}

// NewLoop creates an ingestion loop for the given treasury set. The block
// timestamp cache lives as long as the loop, surviving supervised restarts
// of Run.
func NewLoop(cfg Config, treasury domain.AddressSet, log *slog.Logger) *Loop {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = 1
	}
	cache := NewTimestampCache()
	return &Loop{
		cfg:        cfg,
		classifier: NewClassifier(treasury),
		enricher:   NewEnricher(cfg.Chain, cache),
		log:        log,
	}
}

// Status returns the loop's current position.
func (l *Loop) Status() Status {
	return Status{
		Cursor:    l.curSnap.Load(),
		ChainHead: l.head.Load(),
		Running:   l.running.Load(),
	}
}

// Run ingests until ctx is cancelled (returns nil) or an error escapes a
// cycle (returns it; the supervisor restarts Run, which re-derives the
// cursor from the ledger). No error path advances the cursor past
// unconfirmed work.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	head, err := l.cfg.Chain.HeadHeight(ctx)
	if err != nil {
		return fmt.Errorf("head height: %w", err)
	}
	l.observeHead(head)

	start, err := cursor.ResumePoint(ctx, l.cfg.Ledger, head)
	if err != nil {
		return err
	}
	l.setCursor(start)
	l.log.Info("ingestion starting", "cursor", start, "head", head)

	for {
		if err := l.runCycle(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runCycle processes all confirmed batches once, or idles when the chain has
// nothing new. A batch failure ends the cycle with the cursor held, so the
// failed range is retried from the top next cycle; a later batch can never
// leapfrog it.
func (l *Loop) runCycle(ctx context.Context) error {
	head, err := l.cfg.Chain.HeadHeight(ctx)
	if err != nil {
		return fmt.Errorf("head height: %w", err)
	}
	l.observeHead(head)

	var effectiveEnd uint64
	if head > l.cfg.Confirmations {
		effectiveEnd = head - l.cfg.Confirmations
	}

	if l.cursor > effectiveEnd {
		l.log.Debug("no new confirmed blocks", "cursor", l.cursor, "head", head)
		return l.sleep(ctx, l.cfg.PollInterval)
	}

	for batchStart := l.cursor; batchStart <= effectiveEnd; batchStart += l.cfg.BatchSize {
		if ctx.Err() != nil {
			return nil
		}

		batchEnd := batchStart + l.cfg.BatchSize - 1
		if batchEnd > effectiveEnd {
			batchEnd = effectiveEnd
		}

		if !l.processBatch(ctx, batchStart, batchEnd) {
			break
		}
	}

	return l.sleep(ctx, l.cfg.CycleDelay)
}

// processBatch ingests one block range. Returns false when the cursor must
// hold (fetch or write failure); the range is retried on the next cycle.
func (l *Loop) processBatch(ctx context.Context, from, to uint64) bool {
	started := time.Now()

	logs, err := l.cfg.Chain.GetLogs(ctx, from, to, WatchedTopics())
	if err != nil {
		l.log.Error("batch fetch failed", "from", from, "to", to, "error", err)
		obs.BatchFetchFailures.Inc()
		l.recordFailedRange(ctx, from, to, err)
		return false
	}

	records := l.buildRecords(ctx, logs)

	if len(records) > 0 {
		if err := l.cfg.Ledger.UpsertMany(ctx, records); err != nil {
			l.log.Error("bulk write failed, holding cursor",
				"from", from, "to", to, "records", len(records), "error", err)
			obs.BulkWriteFailures.Inc()
			l.recordFailedRange(ctx, from, to, err)
			return false
		}
		obs.RecordsUpserted.Add(float64(len(records)))
	}

	l.setCursor(to + 1)
	l.resolveFailedRange(ctx, from, to)
	obs.BatchesProcessed.Inc()
	obs.BatchDuration.Observe(time.Since(started).Seconds())
	l.log.Info("batch ingested",
		"from", from, "to", to, "logs", len(logs), "records", len(records))
	return true
}

// buildRecords classifies and enriches a batch's logs into a map keyed by
// record id, collapsing within-batch duplicates. Per-log failures get a
// bounded number of re-attempts; exhausted records are dropped with an error
// log rather than holding the whole batch hostage.
func (l *Loop) buildRecords(ctx context.Context, logs []domain.Log) map[string]*domain.LedgerRecord {
	pending := make(map[string]*Candidate, len(logs))
	for _, entry := range logs {
		cand, err := l.classifier.Classify(entry)
		if err != nil {
			// Deterministic decode failure: retrying cannot help.
			l.log.Warn("discarding undecodable log", "error", err)
			obs.LogsDropped.Inc()
			continue
		}
		if cand == nil {
			continue
		}
		pending[cand.ID()] = cand
	}

	records := make(map[string]*domain.LedgerRecord, len(pending))
	var mu sync.Mutex

	for attempt := 0; attempt <= l.cfg.MaxLogRetries && len(pending) > 0; attempt++ {
		failed := make(map[string]*Candidate)
		var failedMu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.cfg.EnrichConcurrency)

		for id, cand := range pending {
			id, cand := id, cand
			g.Go(func() error {
				rec, err := l.enricher.Enrich(gctx, cand)
				if err != nil {
					l.log.Warn("per-log enrichment failed",
						"id", id, "attempt", attempt+1, "error", err)
					failedMu.Lock()
					failed[id] = cand
					failedMu.Unlock()
					return nil
				}
				mu.Lock()
				records[rec.ID] = rec
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		pending = failed
	}

	for id := range pending {
		l.log.Error("dropping log after exhausting retries", "id", id)
		obs.LogsDropped.Inc()
	}
	return records
}

func (l *Loop) recordFailedRange(ctx context.Context, from, to uint64, cause error) {
	if l.cfg.Failed == nil {
		return
	}
	if err := l.cfg.Failed.Record(ctx, from, to, cause.Error()); err != nil {
		l.log.Warn("failed to record failed range", "error", err)
	}
}

func (l *Loop) resolveFailedRange(ctx context.Context, from, to uint64) {
	if l.cfg.Failed == nil {
		return
	}
	if err := l.cfg.Failed.Resolve(ctx, from, to); err != nil {
		l.log.Warn("failed to resolve failed range", "error", err)
	}
}

func (l *Loop) setCursor(block uint64) {
	l.cursor = block
	l.curSnap.Store(block)
	obs.CursorBlock.Set(float64(block))
}

func (l *Loop) observeHead(head uint64) {
	l.head.Store(head)
	obs.ChainHeadBlock.Set(float64(head))
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(d):
		return nil
	}
}
