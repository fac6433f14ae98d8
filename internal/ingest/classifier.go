package ingest

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/tranqh/treasury-watcher/internal/core/domain"
)

const (
	// TransferTopic is the ERC-20 Transfer(address,address,uint256) signature.
	TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

	// NativeTransferTopic is the signature emitted for native-asset transfers
	// on the watched chain.
	NativeTransferTopic = "0x3d0ce9bfc3ed7d6862dbb28b2dea94561fe714a1b4d019aa8af39730d1ad7c3d"
)

// WatchedTopics returns the topic signatures the log fetch filters on.
func WatchedTopics() []string {
	return []string{TransferTopic, NativeTransferTopic}
}

// Candidate is a classified log awaiting enrichment.
type Candidate struct {
	Log          domain.Log
	EventTopic   string
	TokenAddress string
	FromAddress  string
	ToAddress    string
	AmountRaw    *big.Int
	IsOutgoing   bool
}

// ID returns the dedup key of the event the candidate was built from.
func (c *Candidate) ID() string {
	return domain.RecordID(c.Log.BlockNumber, c.Log.LogIndex)
}

// Classifier turns raw logs into candidates based on topic signature and
// treasury membership/direction rules.
type Classifier struct {
	treasury domain.AddressSet
}

// NewClassifier creates a classifier over the fixed treasury address set.
func NewClassifier(treasury domain.AddressSet) *Classifier {
	return &Classifier{treasury: treasury}
}

// Classify returns the typed candidate for a qualifying log, (nil, nil) for a
// log that is discarded by rule, and an error for a matching log whose
// payload cannot be decoded.
func (c *Classifier) Classify(log domain.Log) (*Candidate, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}

	switch strings.ToLower(log.Topics[0]) {
	case TransferTopic:
		return c.classifyERC20(log)
	case NativeTransferTopic:
		return c.classifyNative(log)
	default:
		return nil, nil
	}
}

func (c *Classifier) classifyERC20(log domain.Log) (*Candidate, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("erc20 transfer log %s: want 3 topics, got %d",
			domain.RecordID(log.BlockNumber, log.LogIndex), len(log.Topics))
	}

	from := domain.ChecksumAddress(topicAddress(log.Topics[1]))
	to := domain.ChecksumAddress(topicAddress(log.Topics[2]))

	fromTreasury := c.treasury.Contains(from)
	toTreasury := c.treasury.Contains(to)

	// Exactly one side must be a treasury address. Internal moves between two
	// treasury addresses net to zero and are not ledger events.
	if fromTreasury == toTreasury {
		return nil, nil
	}

	amount, err := parseAmount(log.Data)
	if err != nil {
		return nil, fmt.Errorf("erc20 transfer log %s: %w",
			domain.RecordID(log.BlockNumber, log.LogIndex), err)
	}

	return &Candidate{
		Log:          log,
		EventTopic:   TransferTopic,
		TokenAddress: domain.ChecksumAddress(log.Address),
		FromAddress:  from,
		ToAddress:    to,
		AmountRaw:    amount,
		IsOutgoing:   fromTreasury,
	}, nil
}

func (c *Classifier) classifyNative(log domain.Log) (*Candidate, error) {
	emitter := domain.ChecksumAddress(log.Address)
	if !c.treasury.Contains(emitter) {
		return nil, nil
	}

	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("native transfer log %s: want 2 topics, got %d",
			domain.RecordID(log.BlockNumber, log.LogIndex), len(log.Topics))
	}

	amount, err := parseAmount(log.Data)
	if err != nil {
		return nil, fmt.Errorf("native transfer log %s: %w",
			domain.RecordID(log.BlockNumber, log.LogIndex), err)
	}

	// Native transfers are recorded as incoming to the emitting address.
	// Inherited sign convention: downstream aggregation depends on it.
	return &Candidate{
		Log:          log,
		EventTopic:   NativeTransferTopic,
		TokenAddress: domain.ZeroAddress,
		FromAddress:  domain.ChecksumAddress(topicAddress(log.Topics[1])),
		ToAddress:    emitter,
		AmountRaw:    amount,
		IsOutgoing:   false,
	}, nil
}

// topicAddress extracts the lower 20 bytes of a 32-byte topic as an address.
func topicAddress(topic string) string {
	t := strings.TrimPrefix(topic, "0x")
	if len(t) < 40 {
		return t
	}
	return t[len(t)-40:]
}

// parseAmount decodes the unsigned big-integer magnitude from log data.
// Empty data means zero. No floating point anywhere on this path.
func parseAmount(data string) (*big.Int, error) {
	d := strings.TrimPrefix(data, "0x")
	if d == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(d, 16)
	if !ok {
		return nil, fmt.Errorf("invalid amount data: %q", data)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative amount data: %q", data)
	}
	return n, nil
}
