package ingest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// mockChain implements ChainReader for testing.
type mockChain struct {
	HeadHeightFunc     func(ctx context.Context) (uint64, error)
	GetLogsFunc        func(ctx context.Context, from, to uint64, topics []string) ([]domain.Log, error)
	GetTransactionFunc func(ctx context.Context, hash string) (*domain.Transaction, error)
	GetBlockFunc       func(ctx context.Context, number uint64) (*domain.Block, error)

	blockCalls int
	txCalls    int
}

func (m *mockChain) HeadHeight(ctx context.Context) (uint64, error) {
	if m.HeadHeightFunc != nil {
		return m.HeadHeightFunc(ctx)
	}
	return 0, nil
}

func (m *mockChain) GetLogs(ctx context.Context, from, to uint64, topics []string) ([]domain.Log, error) {
	if m.GetLogsFunc != nil {
		return m.GetLogsFunc(ctx, from, to, topics)
	}
	return nil, nil
}

func (m *mockChain) GetTransaction(ctx context.Context, hash string) (*domain.Transaction, error) {
	m.txCalls++
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, hash)
	}
	return &domain.Transaction{Hash: hash, Input: "0x"}, nil
}

func (m *mockChain) GetBlock(ctx context.Context, number uint64) (*domain.Block, error) {
	m.blockCalls++
	if m.GetBlockFunc != nil {
		return m.GetBlockFunc(ctx, number)
	}
	return &domain.Block{Number: number, Timestamp: 1700000000}, nil
}

func outgoingCandidate() *Candidate {
	return &Candidate{
		Log: domain.Log{
			BlockNumber: 100,
			LogIndex:    3,
			TxHash:      "0xtxhash",
		},
		EventTopic:   TransferTopic,
		TokenAddress: domain.ChecksumAddress(tokenAddr),
		FromAddress:  domain.ChecksumAddress(treasuryAddr),
		ToAddress:    domain.ChecksumAddress(otherAddr),
		AmountRaw:    big.NewInt(5000),
		IsOutgoing:   true,
	}
}

func TestEnrichOutgoing(t *testing.T) {
	chain := &mockChain{
		GetTransactionFunc: func(ctx context.Context, hash string) (*domain.Transaction, error) {
			return &domain.Transaction{Hash: hash, Input: "0xa9059cbb000000000000"}, nil
		},
		GetBlockFunc: func(ctx context.Context, number uint64) (*domain.Block, error) {
			return &domain.Block{Number: number, Timestamp: 1700000123}, nil
		},
	}
	enricher := NewEnricher(chain, NewTimestampCache())

	rec, err := enricher.Enrich(context.Background(), outgoingCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.ID != "100-3" {
		t.Errorf("unexpected id: %s", rec.ID)
	}
	if rec.AmountRaw != "5000" {
		t.Errorf("unexpected raw amount: %s", rec.AmountRaw)
	}
	if rec.Amount != "-5000" {
		t.Errorf("expected negated amount for outgoing, got %s", rec.Amount)
	}
	if rec.Method != "0xa9059cbb" {
		t.Errorf("unexpected method selector: %s", rec.Method)
	}
	if rec.Timestamp != 1700000123 {
		t.Errorf("unexpected timestamp: %d", rec.Timestamp)
	}
}

func TestEnrichIncomingKeepsSign(t *testing.T) {
	cand := outgoingCandidate()
	cand.IsOutgoing = false

	enricher := NewEnricher(&mockChain{}, NewTimestampCache())
	rec, err := enricher.Enrich(context.Background(), cand)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Amount != "5000" {
		t.Errorf("expected positive amount for incoming, got %s", rec.Amount)
	}
}

func TestEnrichUsesTimestampCache(t *testing.T) {
	chain := &mockChain{}
	cache := NewTimestampCache()
	enricher := NewEnricher(chain, cache)

	first, err := enricher.Enrich(context.Background(), outgoingCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := enricher.Enrich(context.Background(), outgoingCandidate())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chain.blockCalls != 1 {
		t.Errorf("expected 1 block lookup, got %d", chain.blockCalls)
	}
	if first.Timestamp != second.Timestamp {
		t.Errorf("timestamps diverged: %d vs %d", first.Timestamp, second.Timestamp)
	}
	if _, ok := cache.Get(100); !ok {
		t.Error("expected block 100 in cache")
	}
}

func TestEnrichPropagatesLookupFailure(t *testing.T) {
	chain := &mockChain{
		GetTransactionFunc: func(ctx context.Context, hash string) (*domain.Transaction, error) {
			return nil, errors.New("boom")
		},
	}
	enricher := NewEnricher(chain, NewTimestampCache())

	if _, err := enricher.Enrich(context.Background(), outgoingCandidate()); err == nil {
		t.Error("expected error when transaction lookup fails")
	}
}

func TestSelector(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0xa9059cbb000000000000", "0xa9059cbb"},
		{"0xa9059cbb", "0xa9059cbb"},
		{"0xa9059c", "0x"},
		{"0x", "0x"},
		{"", "0x"},
		{"a9059cbb00000000", "0x"},
	}

	for _, tt := range tests {
		if got := Selector(tt.input); got != tt.want {
			t.Errorf("Selector(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
