package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tranqh/treasury-watcher/internal/core/config"
	"github.com/tranqh/treasury-watcher/internal/core/domain"
	"github.com/tranqh/treasury-watcher/internal/infra/chain/evm"
	redisclient "github.com/tranqh/treasury-watcher/internal/infra/redis"
	"github.com/tranqh/treasury-watcher/internal/infra/rpc"
	"github.com/tranqh/treasury-watcher/internal/infra/storage"
	"github.com/tranqh/treasury-watcher/internal/infra/storage/memory"
	"github.com/tranqh/treasury-watcher/internal/infra/storage/postgres"
	"github.com/tranqh/treasury-watcher/internal/ingest"
	"github.com/tranqh/treasury-watcher/internal/obs"
)

// Watcher wires the ingestion loop, its storage, and the observability
// surface, and supervises the loop's lifecycle.
type Watcher struct {
	cfg        *config.AppConfig
	loop       *ingest.Loop
	obsServer  *obs.Server
	db         *postgres.DB
	redis      *redisclient.Client
	provider   *rpc.HTTPProvider
	log        *slog.Logger
	retryDelay time.Duration
}

// NewWatcher validates the configuration and initializes all dependencies.
// It fails fast when the config is invalid or the chain endpoint is
// unreachable.
func NewWatcher(ctx context.Context, cfg *config.AppConfig) (*Watcher, error) {
	log := slog.Default()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Storage
	var ledger storage.LedgerRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		ledger = postgres.NewLedgerRepo(db)
		log.Info("using PostgreSQL ledger")
	} else {
		ledger = memory.NewLedgerRepo()
		log.Warn("no database configured, using in-memory ledger")
	}

	// 2. Chain client + startup probe
	provider := rpc.NewHTTPProvider(cfg.Chain.RPCURL, cfg.Chain.RPCTimeout.Std())
	chainClient := evm.NewClient(provider, rpc.RetryConfig{
		Attempts: cfg.Ingest.RPCRetryAttempts,
		Delay:    cfg.Ingest.RPCRetryDelay.Std(),
	})
	if err := chainClient.Ping(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to chain", "endpoint", cfg.Chain.RPCURL)

	// 3. Optional failed-range tracking
	var failed ingest.FailedRanges
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, failed-range tracking disabled", "error", err)
		} else {
			failed = redisclient.NewFailedRangeTracker(redisClient)
			log.Info("failed-range tracking enabled")
		}
	}

	// 4. Ingestion loop
	treasury := domain.NewAddressSet(cfg.Chain.TreasuryAddresses)
	log.Info("watching treasury addresses", "count", treasury.Size())

	loop := ingest.NewLoop(ingest.Config{
		Chain:             chainClient,
		Ledger:            ledger,
		Failed:            failed,
		BatchSize:         cfg.Ingest.BatchSize,
		Confirmations:     cfg.Ingest.Confirmations,
		PollInterval:      cfg.Ingest.PollInterval.Std(),
		CycleDelay:        cfg.Ingest.CycleDelay.Std(),
		MaxLogRetries:     cfg.Ingest.MaxLogRetries,
		EnrichConcurrency: cfg.Ingest.EnrichConcurrency,
	}, treasury, log)

	// 5. Observability
	checks := make(map[string]obs.HealthCheck)
	if db != nil {
		checks["database"] = db.Health
	}
	obsServer := obs.NewServer(cfg.Server.Port, func() obs.Snapshot {
		return obs.Snapshot(loop.Status())
	}, checks)

	return &Watcher{
		cfg:        cfg,
		loop:       loop,
		obsServer:  obsServer,
		db:         db,
		redis:      redisClient,
		provider:   provider,
		log:        log,
		retryDelay: cfg.Ingest.RetryDelay.Std(),
	}, nil
}

// Start launches the observability server and the supervised ingestion loop.
func (w *Watcher) Start(ctx context.Context) error {
	go func() {
		if err := w.obsServer.Start(); err != nil {
			w.log.Error("observability server failed", "error", err)
		}
	}()

	go w.supervise(ctx)
	return nil
}

// Stop shuts everything down.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("stopping watcher")

	if w.redis != nil {
		if err := w.redis.Close(); err != nil {
			w.log.Warn("failed to close redis", "error", err)
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Warn("failed to close db", "error", err)
		}
	}
	_ = w.provider.Close()

	return w.obsServer.Stop(ctx)
}

// supervise restarts the ingestion loop after any escaped error or panic.
// Each restart re-derives the cursor from the ledger, so at most one
// partially-failed batch range is reprocessed (idempotent).
func (w *Watcher) supervise(ctx context.Context) {
	for {
		runID := uuid.NewString()[:8]
		log := w.log.With("run_id", runID)
		log.Info("starting ingestion run")

		err := w.runOnce(ctx)
		if ctx.Err() != nil {
			log.Info("ingestion stopped")
			return
		}

		log.Error("ingestion run ended, restarting", "error", err, "delay", w.retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in ingestion loop: %v", r)
		}
	}()
	return w.loop.Run(ctx)
}
