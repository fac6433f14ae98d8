package evm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
	"github.com/tranqh/treasury-watcher/internal/infra/rpc"
)

// mockCaller implements rpc.Caller for testing.
type mockCaller struct {
	CallFunc func(ctx context.Context, method string, params []any) (any, error)
	calls    int
}

func (m *mockCaller) Call(ctx context.Context, method string, params []any) (any, error) {
	m.calls++
	if m.CallFunc != nil {
		return m.CallFunc(ctx, method, params)
	}
	return nil, nil
}

func noRetry() rpc.RetryConfig {
	return rpc.RetryConfig{Attempts: 1}
}

func TestHeadHeight(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_blockNumber" {
				t.Errorf("unexpected method: %s", method)
			}
			return "0x12d687", nil
		},
	}

	client := NewClient(mock, noRetry())
	height, err := client.HeadHeight(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 1234567 {
		t.Errorf("expected height 1234567, got %d", height)
	}
}

func TestGetLogs(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_getLogs" {
				t.Errorf("unexpected method: %s", method)
			}
			filter, ok := params[0].(map[string]any)
			if !ok {
				t.Fatalf("unexpected filter type %T", params[0])
			}
			if filter["fromBlock"] != "0x5" || filter["toBlock"] != "0x68" {
				t.Errorf("unexpected range: %v-%v", filter["fromBlock"], filter["toBlock"])
			}
			return []any{
				map[string]any{
					"address":         "0xtoken",
					"topics":          []any{"0xtopic0", "0xtopic1"},
					"data":            "0x0de0b6b3a7640000",
					"blockNumber":     "0x64",
					"logIndex":        "0x3",
					"transactionHash": "0xtxhash",
				},
			}, nil
		},
	}

	client := NewClient(mock, noRetry())
	logs, err := client.GetLogs(context.Background(), 5, 104, []string{"0xtopic0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}

	log := logs[0]
	if log.BlockNumber != 100 {
		t.Errorf("expected block 100, got %d", log.BlockNumber)
	}
	if log.LogIndex != 3 {
		t.Errorf("expected log index 3, got %d", log.LogIndex)
	}
	if log.TxHash != "0xtxhash" {
		t.Errorf("unexpected tx hash: %s", log.TxHash)
	}
	if len(log.Topics) != 2 {
		t.Errorf("expected 2 topics, got %d", len(log.Topics))
	}
}

func TestGetLogsReturnsBatchFetchError(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			return nil, errors.New("rpc down")
		},
	}

	client := NewClient(mock, noRetry())
	_, err := client.GetLogs(context.Background(), 5, 104, []string{"0xtopic0"})
	if err == nil {
		t.Fatal("expected error")
	}

	var batchErr *BatchFetchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected *BatchFetchError, got %T", err)
	}
	if batchErr.From != 5 || batchErr.To != 104 {
		t.Errorf("expected range 5-104, got %d-%d", batchErr.From, batchErr.To)
	}
}

func TestGetTransaction(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_getTransactionByHash" {
				t.Errorf("unexpected method: %s", method)
			}
			return map[string]any{
				"hash":        "0xtxhash",
				"input":       "0xa9059cbb0000",
				"from":        "0xalice",
				"to":          "0xtoken",
				"blockNumber": "0x64",
			}, nil
		},
	}

	client := NewClient(mock, noRetry())
	tx, err := client.GetTransaction(context.Background(), "0xtxhash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Input != "0xa9059cbb0000" {
		t.Errorf("unexpected input: %s", tx.Input)
	}
	if tx.BlockNumber != 100 {
		t.Errorf("expected block 100, got %d", tx.BlockNumber)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	client := NewClient(&mockCaller{}, noRetry())

	_, err := client.GetTransaction(context.Background(), "0xmissing")
	if err == nil {
		t.Fatal("expected error for null result")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetBlock(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			if method != "eth_getBlockByNumber" {
				t.Errorf("unexpected method: %s", method)
			}
			if params[0] != "0x64" || params[1] != false {
				t.Errorf("unexpected params: %v", params)
			}
			return map[string]any{
				"number":    "0x64",
				"hash":      "0xblockhash",
				"timestamp": "0x65678900",
			}, nil
		},
	}

	client := NewClient(mock, noRetry())
	block, err := client.GetBlock(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Number != 100 {
		t.Errorf("expected block 100, got %d", block.Number)
	}
	if block.Timestamp != 0x65678900 {
		t.Errorf("unexpected timestamp: %d", block.Timestamp)
	}
}

func TestPingWrapsUnavailable(t *testing.T) {
	mock := &mockCaller{
		CallFunc: func(ctx context.Context, method string, params []any) (any, error) {
			return nil, errors.New("connection refused")
		},
	}

	client := NewClient(mock, noRetry())
	err := client.Ping(context.Background())
	if !errors.Is(err, domain.ErrChainUnavailable) {
		t.Errorf("expected ErrChainUnavailable, got %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("expected a single probe without retries, got %d calls", mock.calls)
	}
}
