package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BookmarkStore is the key-value collection of starred quotes, keyed by
// quote id.
type BookmarkStore interface {
	List(ctx context.Context) ([]BookmarkRecord, error)
	Get(ctx context.Context, key string) (BookmarkRecord, error)
	Add(ctx context.Context, rec BookmarkRecord, key string) error
	Delete(ctx context.Context, key string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
