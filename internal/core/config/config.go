package config

import (
	"fmt"
	"time"

	redisclient "github.com/tranqh/treasury-watcher/internal/infra/redis"
	"github.com/tranqh/treasury-watcher/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Chain    ChainConfig        `yaml:"chain"`
	Ingest   IngestConfig       `yaml:"ingest"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChainConfig holds settings for the watched chain.
type ChainConfig struct {
	RPCURL            string   `yaml:"rpc_url"`
	RPCTimeout        Duration `yaml:"rpc_timeout"`
	TreasuryAddresses []string `yaml:"treasury_addresses"`
}

// IngestConfig holds the ingestion loop tuning.
type IngestConfig struct {
	BatchSize     uint64   `yaml:"batch_size"`
	Confirmations uint64   `yaml:"confirmations"`
	PollInterval  Duration `yaml:"poll_interval"`
	CycleDelay    Duration `yaml:"cycle_delay"`

	// RetryDelay is the pause before the supervisor restarts a failed run.
	RetryDelay Duration `yaml:"retry_delay"`

	RPCRetryAttempts  int      `yaml:"rpc_retry_attempts"`
	RPCRetryDelay     Duration `yaml:"rpc_retry_delay"`
	MaxLogRetries     int      `yaml:"max_log_retries"`
	EnrichConcurrency int      `yaml:"enrich_concurrency"`
}

// Duration parses "20s"-style strings from YAML into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
