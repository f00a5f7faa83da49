package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps the most recent entries in a capped Redis list, newest first.
type RedisRecorder struct {
	rdb    *redis.Client
	key    string
	maxLen int64
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, key string, maxLen int64) *RedisRecorder {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RedisRecorder{rdb: rdb, key: key, maxLen: maxLen}
}

// Record pushes e and trims the list in a single round trip.
func (r *RedisRecorder) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis audit write: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (r *RedisRecorder) Recent(ctx context.Context, n int64) ([]Entry, error) {
	raw, err := r.rdb.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the underlying client.
func (r *RedisRecorder) Close() error {
	return r.rdb.Close()
}
