package ingest

import "sync"

// TimestampCache maps block numbers to block timestamps for the lifetime of a
// run. Populated lazily, never persisted: after a restart each distinct block
// costs one RPC lookup again. Writes are idempotent (a block number always
// maps to the same timestamp), so concurrent populators racing on the same
// key are benign.
type TimestampCache struct {
	mu      sync.RWMutex
	byBlock map[uint64]uint64
}

// NewTimestampCache creates an empty cache.
func NewTimestampCache() *TimestampCache {
	return &TimestampCache{byBlock: make(map[uint64]uint64)}
}

// Get returns the cached timestamp for a block, if present.
func (c *TimestampCache) Get(block uint64) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.byBlock[block]
	return ts, ok
}

// Put stores the timestamp for a block.
func (c *TimestampCache) Put(block, timestamp uint64) {
	c.mu.Lock()
	c.byBlock[block] = timestamp
	c.mu.Unlock()
}

// Len returns the number of cached blocks.
func (c *TimestampCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byBlock)
}
