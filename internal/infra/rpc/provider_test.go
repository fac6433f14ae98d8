package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProviderCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["jsonrpc"] != "2.0" {
			t.Errorf("expected jsonrpc 2.0, got %v", req["jsonrpc"])
		}
		if req["method"] != "eth_blockNumber" {
			t.Errorf("unexpected method: %v", req["method"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  "0x12d687",
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	defer provider.Close()

	result, err := provider.Call(context.Background(), "eth_blockNumber", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "0x12d687" {
		t.Errorf("unexpected result: %v", result)
	}

	successes, failures := provider.Stats()
	if successes != 1 || failures != 0 {
		t.Errorf("expected 1 success / 0 failures, got %d / %d", successes, failures)
	}
}

func TestHTTPProviderRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32000, "message": "header not found"},
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	defer provider.Close()

	_, err := provider.Call(context.Background(), "eth_getLogs", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "header not found") {
		t.Errorf("expected rpc error message, got %v", err)
	}

	_, failures := provider.Stats()
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestHTTPProviderHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	defer provider.Close()

	_, err := provider.Call(context.Background(), "eth_blockNumber", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 502") {
		t.Errorf("expected http status in error, got %v", err)
	}
}

func TestHTTPProviderNullResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  nil,
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	defer provider.Close()

	result, err := provider.Call(context.Background(), "eth_getTransactionByHash", []any{"0xmissing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}
