package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesProcessed tracks batches fully ingested (fetch + write).
	BatchesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_watcher_batches_processed_total",
			Help: "Total number of block batches fully ingested",
		},
	)

	// BatchFetchFailures tracks log fetches that exhausted their retries.
	BatchFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_watcher_batch_fetch_failures_total",
			Help: "Total number of batch log fetches that failed after retries",
		},
	)

	// BulkWriteFailures tracks failed ledger bulk upserts.
	BulkWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_watcher_bulk_write_failures_total",
			Help: "Total number of failed ledger bulk writes",
		},
	)

	// RecordsUpserted tracks ledger records written (including re-ingested).
	RecordsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_watcher_records_upserted_total",
			Help: "Total number of ledger records upserted",
		},
	)

	// LogsDropped tracks logs abandoned after classification or enrichment
	// failures.
	LogsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_watcher_logs_dropped_total",
			Help: "Total number of logs dropped after exhausting in-batch retries",
		},
	)

	// ChainHeadBlock tracks the chain head as last observed.
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasury_watcher_chain_head_block",
			Help: "Latest observed chain head block number",
		},
	)

	// CursorBlock tracks the next block the ingestion loop will read.
	CursorBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasury_watcher_cursor_block",
			Help: "Next block number to ingest",
		},
	)

	// BatchDuration tracks wall time per ingested batch.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treasury_watcher_batch_duration_seconds",
			Help:    "Wall time spent ingesting one batch",
			Buckets: prometheus.DefBuckets,
		},
	)
)
