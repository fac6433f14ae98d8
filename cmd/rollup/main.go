package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/tranqh/treasury-watcher/internal/core/config"
	"github.com/tranqh/treasury-watcher/internal/infra/storage/postgres"
	"github.com/tranqh/treasury-watcher/internal/rollup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.RFC3339,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("Rollup requires a database", "error", "database.url is not set")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate("migrations"); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	job := rollup.NewJob(postgres.NewRollupRepo(db), slog.Default())
	written, err := job.Run(ctx, time.Now())
	if err != nil {
		slog.Error("Rollup failed", "error", err, "days_written", written)
		os.Exit(1)
	}

	slog.Info("Rollup complete", "days_written", written)
}
