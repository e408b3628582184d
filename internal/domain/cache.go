package domain

import (
	"context"
	"time"
)

// QuoteCache holds the latest prepared snapshot per bookmaker.
type QuoteCache interface {
	SetSnapshot(ctx context.Context, snap FeedSnapshot) error
	GetSnapshot(ctx context.Context, bookmaker string) (FeedSnapshot, error)
	Invalidate(ctx context.Context, bookmaker string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld when
// another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is a single entry of a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	// StreamRecent returns up to count entries, newest first.
	StreamRecent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}
