package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evbets/evboard/internal/domain"
)

// QuoteCache implements domain.QuoteCache so every replica serves the same
// prepared set.
//
// Key schema:
//
//	snapshot:{bookmaker} - hash; "data" holds the JSON snapshot, "fetch_id"
//	                       and "fetched_at" are kept alongside for inspection
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache whose entries expire after ttl.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(bookmaker string) string { return "snapshot:" + bookmaker }

// SetSnapshot replaces the cached snapshot for snap.Bookmaker.
func (qc *QuoteCache) SetSnapshot(ctx context.Context, snap domain.FeedSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Bookmaker, err)
	}

	key := snapshotKey(snap.Bookmaker)
	pipe := qc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"data", data,
		"fetch_id", snap.FetchID,
		"fetched_at", snap.FetchedAt.UTC().Format(time.RFC3339),
	)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Bookmaker, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot or domain.ErrNotFound.
func (qc *QuoteCache) GetSnapshot(ctx context.Context, bookmaker string) (domain.FeedSnapshot, error) {
	data, err := qc.rdb.HGet(ctx, snapshotKey(bookmaker), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FeedSnapshot{}, fmt.Errorf("redis: snapshot %s: %w", bookmaker, domain.ErrNotFound)
	}
	if err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", bookmaker, err)
	}

	var snap domain.FeedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", bookmaker, err)
	}
	return snap, nil
}

// Invalidate removes the cached snapshot.
func (qc *QuoteCache) Invalidate(ctx context.Context, bookmaker string) error {
	if err := qc.rdb.Del(ctx, snapshotKey(bookmaker)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot %s: %w", bookmaker, err)
	}
	return nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
