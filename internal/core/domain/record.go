package domain

import "fmt"

// ZeroAddress is the sentinel token address recorded for native-asset transfers.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// LedgerRecord is one finalized treasury transfer. Records are keyed by ID and
// immutable once written: re-ingesting the same event overwrites the row with
// identical content.
type LedgerRecord struct {
	ID           string `db:"id"            json:"id"`
	TxHash       string `db:"tx_hash"       json:"txHash"`
	BlockNumber  uint64 `db:"block_number"  json:"blockNumber"`
	LogIndex     uint32 `db:"log_index"     json:"logIndex"`
	Timestamp    uint64 `db:"timestamp"     json:"timestamp"`
	EventTopic   string `db:"event_topic"   json:"eventTopic"`
	TokenAddress string `db:"token_address" json:"tokenAddress"`
	FromAddress  string `db:"from_address"  json:"fromAddress"`
	ToAddress    string `db:"to_address"    json:"toAddress"`
	AmountRaw    string `db:"amount_raw"    json:"amountRaw"`
	Amount       string `db:"amount"        json:"amount"`
	IsOutgoing   bool   `db:"is_outgoing"   json:"isOutgoing"`
	Method       string `db:"method"        json:"method"`
}

// RecordID builds the dedup key for an on-chain event. The (block, logIndex)
// pair is stable across re-ingestion, unlike anything derived from fetch order.
func RecordID(blockNumber uint64, logIndex uint32) string {
	return fmt.Sprintf("%d-%d", blockNumber, logIndex)
}
