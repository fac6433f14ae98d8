package rpc

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig defines the bounded retry policy applied to every chain call:
// a fixed number of attempts with a fixed delay between them. The final
// attempt's failure propagates to the caller.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryConfig is applied when a RetryConfig leaves Attempts unset.
var DefaultRetryConfig = RetryConfig{
	Attempts: 3,
	Delay:    5 * time.Second,
}

// CallWithRetry executes a JSON-RPC call under the fixed retry policy.
func CallWithRetry(
	ctx context.Context,
	p Caller,
	method string,
	params []any,
	cfg RetryConfig,
) (any, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultRetryConfig.Attempts
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", cfg.Attempts, lastErr)
}
