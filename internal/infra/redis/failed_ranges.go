package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailedRange describes one batch range that failed to ingest, for operator
// visibility. The loop itself retries the range on its next cycle regardless;
// this bookkeeping only surfaces what is currently stuck.
type FailedRange struct {
	From     uint64    `json:"from"`
	To       uint64    `json:"to"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// FailedRangeTracker records failed batch ranges in Redis.
type FailedRangeTracker struct {
	rdb *redis.Client
}

// NewFailedRangeTracker creates a tracker on an existing client.
func NewFailedRangeTracker(client *Client) *FailedRangeTracker {
	return &FailedRangeTracker{rdb: client.rdb}
}

const failedRangesKey = "treasury_watcher:failed_ranges"

func detailKey(from, to uint64) string {
	return fmt.Sprintf("treasury_watcher:failed_range:%d-%d", from, to)
}

// Record stores a failed range, keyed by its block span.
func (t *FailedRangeTracker) Record(ctx context.Context, from, to uint64, reason string) error {
	fr := FailedRange{From: from, To: to, Reason: reason, FailedAt: time.Now().UTC()}
	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("failed to marshal failed range: %w", err)
	}

	member := fmt.Sprintf("%d-%d", from, to)
	if err := t.rdb.ZAdd(ctx, failedRangesKey, redis.Z{
		Score:  float64(from),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add range to set: %w", err)
	}

	if err := t.rdb.Set(ctx, detailKey(from, to), data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store range detail: %w", err)
	}
	return nil
}

// Resolve removes a range once a later cycle ingests it.
func (t *FailedRangeTracker) Resolve(ctx context.Context, from, to uint64) error {
	member := fmt.Sprintf("%d-%d", from, to)
	if err := t.rdb.ZRem(ctx, failedRangesKey, member).Err(); err != nil {
		return fmt.Errorf("failed to remove range from set: %w", err)
	}
	if err := t.rdb.Del(ctx, detailKey(from, to)).Err(); err != nil {
		return fmt.Errorf("failed to delete range detail: %w", err)
	}
	return nil
}

// All returns the currently recorded failed ranges in block order.
func (t *FailedRangeTracker) All(ctx context.Context) ([]FailedRange, error) {
	members, err := t.rdb.ZRange(ctx, failedRangesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	ranges := make([]FailedRange, 0, len(members))
	for _, m := range members {
		from, to, err := parseRangeMember(m)
		if err != nil {
			continue
		}

		data, err := t.rdb.Get(ctx, detailKey(from, to)).Bytes()
		if err == redis.Nil {
			// Detail expired; the set entry alone still names the range.
			ranges = append(ranges, FailedRange{From: from, To: to})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get range detail: %w", err)
		}

		var fr FailedRange
		if err := json.Unmarshal(data, &fr); err != nil {
			continue
		}
		ranges = append(ranges, fr)
	}
	return ranges, nil
}

func parseRangeMember(member string) (uint64, uint64, error) {
	parts := strings.SplitN(member, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range member: %q", member)
	}
	from, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	to, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}
