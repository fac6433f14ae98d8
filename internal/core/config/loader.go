package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// Load reads configuration from a YAML file, expanding ${VAR} references
// from the environment, and applies defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Chain.RPCTimeout == 0 {
		cfg.Chain.RPCTimeout = Duration(10 * time.Second)
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.Confirmations == 0 {
		cfg.Ingest.Confirmations = 1
	}
	if cfg.Ingest.PollInterval == 0 {
		cfg.Ingest.PollInterval = Duration(20 * time.Second)
	}
	if cfg.Ingest.CycleDelay == 0 {
		cfg.Ingest.CycleDelay = Duration(60 * time.Second)
	}
	if cfg.Ingest.RetryDelay == 0 {
		cfg.Ingest.RetryDelay = Duration(10 * time.Second)
	}
	if cfg.Ingest.RPCRetryAttempts == 0 {
		cfg.Ingest.RPCRetryAttempts = 3
	}
	if cfg.Ingest.RPCRetryDelay == 0 {
		cfg.Ingest.RPCRetryDelay = Duration(5 * time.Second)
	}
	if cfg.Ingest.MaxLogRetries == 0 {
		cfg.Ingest.MaxLogRetries = 2
	}
	if cfg.Ingest.EnrichConcurrency == 0 {
		cfg.Ingest.EnrichConcurrency = 1
	}
}

// Validate fails fast on configuration the process cannot start with.
func (cfg *AppConfig) Validate() error {
	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("%w: chain.rpc_url is required", domain.ErrConfigInvalid)
	}
	if len(cfg.Chain.TreasuryAddresses) == 0 {
		return fmt.Errorf("%w: chain.treasury_addresses must not be empty", domain.ErrConfigInvalid)
	}
	return nil
}
