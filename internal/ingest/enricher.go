package ingest

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

// ChainReader is the chain surface the ingestion pipeline depends on.
type ChainReader interface {
	HeadHeight(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, from, to uint64, topics []string) ([]domain.Log, error)
	GetTransaction(ctx context.Context, hash string) (*domain.Transaction, error)
	GetBlock(ctx context.Context, number uint64) (*domain.Block, error)
}

// Enricher completes candidates with transaction metadata and block
// timestamps, producing finalized ledger records.
type Enricher struct {
	chain ChainReader
	cache *TimestampCache
}

// NewEnricher creates an enricher backed by the given chain and cache.
func NewEnricher(chain ChainReader, cache *TimestampCache) *Enricher {
	return &Enricher{chain: chain, cache: cache}
}

// Enrich finalizes one candidate. A failed transaction or block lookup is a
// per-record error the caller may retry; a missing or malformed selector is
// not (the record gets "0x").
func (e *Enricher) Enrich(ctx context.Context, cand *Candidate) (*domain.LedgerRecord, error) {
	tx, err := e.chain.GetTransaction(ctx, cand.Log.TxHash)
	if err != nil {
		return nil, fmt.Errorf("enrich %s: %w", cand.ID(), err)
	}

	timestamp, err := e.blockTimestamp(ctx, cand.Log.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("enrich %s: %w", cand.ID(), err)
	}

	amount := cand.AmountRaw
	if cand.IsOutgoing {
		amount = new(big.Int).Neg(cand.AmountRaw)
	}

	return &domain.LedgerRecord{
		ID:           cand.ID(),
		TxHash:       cand.Log.TxHash,
		BlockNumber:  cand.Log.BlockNumber,
		LogIndex:     cand.Log.LogIndex,
		Timestamp:    timestamp,
		EventTopic:   cand.EventTopic,
		TokenAddress: cand.TokenAddress,
		FromAddress:  cand.FromAddress,
		ToAddress:    cand.ToAddress,
		AmountRaw:    cand.AmountRaw.String(),
		Amount:       amount.String(),
		IsOutgoing:   cand.IsOutgoing,
		Method:       Selector(tx.Input),
	}, nil
}

func (e *Enricher) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	if ts, ok := e.cache.Get(blockNumber); ok {
		return ts, nil
	}

	block, err := e.chain.GetBlock(ctx, blockNumber)
	if err != nil {
		return 0, err
	}

	e.cache.Put(blockNumber, block.Timestamp)
	return block.Timestamp, nil
}

// Selector extracts the 4-byte method selector from transaction input data,
// or "0x" when the input is absent or malformed.
func Selector(input string) string {
	if !strings.HasPrefix(input, "0x") || len(input) < 10 {
		return "0x"
	}
	return input[:10]
}
