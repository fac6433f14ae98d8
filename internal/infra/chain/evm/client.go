package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
	"github.com/tranqh/treasury-watcher/internal/infra/rpc"
)

// BatchFetchError reports a log fetch that kept failing after the bounded
// retry policy was exhausted. The ingestion loop treats it as batch-local.
type BatchFetchError struct {
	From uint64
	To   uint64
	Err  error
}

func (e *BatchFetchError) Error() string {
	return fmt.Sprintf("fetch logs for blocks %d-%d: %v", e.From, e.To, e.Err)
}

func (e *BatchFetchError) Unwrap() error { return e.Err }

// Client is a thin synchronous wrapper around an EVM JSON-RPC endpoint.
// Every call goes through the fixed bounded-retry policy.
type Client struct {
	provider rpc.Caller
	retry    rpc.RetryConfig
}

// NewClient creates a chain client on top of a JSON-RPC provider.
func NewClient(provider rpc.Caller, retry rpc.RetryConfig) *Client {
	return &Client{provider: provider, retry: retry}
}

// Ping verifies connectivity by asking for the head height once, without
// retries. Used for the startup probe.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.provider.Call(ctx, "eth_blockNumber", nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrChainUnavailable, err)
	}
	return nil
}

// HeadHeight returns the current chain head block number.
func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	result, err := rpc.CallWithRetry(ctx, c.provider, "eth_blockNumber", nil, c.retry)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	hex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("eth_blockNumber: unexpected response %T", result)
	}
	return parseHexUint(hex)
}

// GetLogs fetches logs for the inclusive block range whose first topic
// matches any of the given signatures. On final failure the error is a
// *BatchFetchError naming the range.
func (c *Client) GetLogs(ctx context.Context, from, to uint64, topics []string) ([]domain.Log, error) {
	topicOr := make([]any, len(topics))
	for i, t := range topics {
		topicOr[i] = t
	}

	params := []any{map[string]any{
		"fromBlock": hexUint(from),
		"toBlock":   hexUint(to),
		"topics":    []any{topicOr},
	}}

	result, err := rpc.CallWithRetry(ctx, c.provider, "eth_getLogs", params, c.retry)
	if err != nil {
		return nil, &BatchFetchError{From: from, To: to, Err: err}
	}

	rawLogs, ok := result.([]any)
	if !ok {
		return nil, &BatchFetchError{From: from, To: to, Err: fmt.Errorf("unexpected response %T", result)}
	}

	logs := make([]domain.Log, 0, len(rawLogs))
	for _, rawLog := range rawLogs {
		entry, ok := rawLog.(map[string]any)
		if !ok {
			continue
		}
		logs = append(logs, parseLog(entry))
	}
	return logs, nil
}

// GetTransaction looks up a transaction by hash.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*domain.Transaction, error) {
	result, err := rpc.CallWithRetry(ctx, c.provider, "eth_getTransactionByHash", []any{hash}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash %s: %w", hash, err)
	}
	if result == nil {
		return nil, fmt.Errorf("transaction %s not found", hash)
	}

	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("eth_getTransactionByHash %s: unexpected response %T", hash, result)
	}

	blockNumber, _ := parseHexUint(getString(raw["blockNumber"]))
	return &domain.Transaction{
		Hash:        getString(raw["hash"]),
		Input:       getString(raw["input"]),
		From:        getString(raw["from"]),
		To:          getString(raw["to"]),
		BlockNumber: blockNumber,
	}, nil
}

// GetBlock looks up a block header by number.
func (c *Client) GetBlock(ctx context.Context, number uint64) (*domain.Block, error) {
	params := []any{hexUint(number), false}
	result, err := rpc.CallWithRetry(ctx, c.provider, "eth_getBlockByNumber", params, c.retry)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: %w", number, err)
	}
	if result == nil {
		return nil, fmt.Errorf("block %d not found", number)
	}

	raw, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("eth_getBlockByNumber %d: unexpected response %T", number, result)
	}

	num, _ := parseHexUint(getString(raw["number"]))
	ts, _ := parseHexUint(getString(raw["timestamp"]))
	return &domain.Block{
		Number:    num,
		Hash:      getString(raw["hash"]),
		Timestamp: ts,
	}, nil
}

func parseLog(raw map[string]any) domain.Log {
	blockNumber, _ := parseHexUint(getString(raw["blockNumber"]))
	logIndex, _ := parseHexUint(getString(raw["logIndex"]))

	var topics []string
	if rawTopics, ok := raw["topics"].([]any); ok {
		topics = make([]string, 0, len(rawTopics))
		for _, t := range rawTopics {
			topics = append(topics, getString(t))
		}
	}

	return domain.Log{
		Address:     getString(raw["address"]),
		Topics:      topics,
		Data:        getString(raw["data"]),
		BlockNumber: blockNumber,
		LogIndex:    uint32(logIndex),
		TxHash:      getString(raw["transactionHash"]),
	}
}

func hexUint(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

func parseHexUint(hex string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hex, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex: %q", hex)
	}
	return n.Uint64(), nil
}

func getString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
