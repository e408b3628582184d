// Package memory provides in-process implementations of the snapshot cache
// and signal bus for single-replica deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marstr/collection/v2"

	"github.com/evbets/evboard/internal/domain"
)

type entry struct {
	snap     domain.FeedSnapshot
	storedAt time.Time
	valid    bool
}

// QuoteCache keeps the latest snapshot per bookmaker in a bounded LRU.
// Entries older than TTL are treated as misses.
type QuoteCache struct {
	mu  sync.Mutex
	lru *collection.LRUCache[string, entry]
	ttl time.Duration
	now func() time.Time
}

// NewQuoteCache creates a cache holding at most capacity bookmakers. A zero
// ttl keeps entries until evicted.
func NewQuoteCache(capacity uint, ttl time.Duration) *QuoteCache {
	if capacity == 0 {
		capacity = 16
	}
	return &QuoteCache{
		lru: collection.NewLRUCache[string, entry](capacity),
		ttl: ttl,
		now: time.Now,
	}
}

// SetSnapshot stores snap under its bookmaker.
func (c *QuoteCache) SetSnapshot(_ context.Context, snap domain.FeedSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Put(snap.Bookmaker, entry{snap: snap, storedAt: c.now(), valid: true})
	return nil
}

// GetSnapshot returns the cached snapshot for bookmaker or domain.ErrNotFound.
func (c *QuoteCache) GetSnapshot(_ context.Context, bookmaker string) (domain.FeedSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(bookmaker)
	if !ok || !e.valid || (c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl) {
		return domain.FeedSnapshot{}, fmt.Errorf("memory: snapshot %s: %w", bookmaker, domain.ErrNotFound)
	}
	return e.snap, nil
}

// Invalidate drops the snapshot for bookmaker.
func (c *QuoteCache) Invalidate(_ context.Context, bookmaker string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Put(bookmaker, entry{})
	return nil
}
