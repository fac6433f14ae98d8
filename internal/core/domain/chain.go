package domain

// Log is a raw EVM log entry as returned by eth_getLogs.
type Log struct {
	Address     string
	Topics      []string
	Data        string
	BlockNumber uint64
	LogIndex    uint32
	TxHash      string
}

// Transaction carries the transaction fields the enricher needs.
type Transaction struct {
	Hash        string
	Input       string
	From        string
	To          string
	BlockNumber uint64
}

// Block carries the block fields the enricher needs.
type Block struct {
	Number    uint64
	Hash      string
	Timestamp uint64
}
