package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Caller is the minimal JSON-RPC surface the chain client depends on.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (any, error)
}

// HTTPProvider implements Caller for JSON-RPC over HTTP.
type HTTPProvider struct {
	endpoint   string
	httpClient *http.Client

	mu           sync.Mutex
	successCount int
	failureCount int
}

// NewHTTPProvider creates a new HTTP-based JSON-RPC provider.
func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Call makes a single JSON-RPC call and returns the decoded result field.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.recordFailure()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp struct {
		Result any             `json:"result"`
		Error  *map[string]any `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		errMsg := "unknown error"
		if msg, ok := (*rpcResp.Error)["message"].(string); ok {
			errMsg = msg
		}
		p.recordFailure()
		return nil, fmt.Errorf("rpc error: %s", errMsg)
	}

	p.recordSuccess()
	return rpcResp.Result, nil
}

// Close cleans up idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Stats returns cumulative success/failure counts since startup.
func (p *HTTPProvider) Stats() (successes, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.successCount, p.failureCount
}

func (p *HTTPProvider) recordSuccess() {
	p.mu.Lock()
	p.successCount++
	p.mu.Unlock()
}

func (p *HTTPProvider) recordFailure() {
	p.mu.Lock()
	p.failureCount++
	p.mu.Unlock()
}
