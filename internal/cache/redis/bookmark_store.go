package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/evbets/evboard/internal/domain"
)

const bookmarksKey = "bookmarks"

// BookmarkStore implements domain.BookmarkStore on a single Redis hash whose
// fields are quote ids and whose values are JSON records.
type BookmarkStore struct {
	rdb *redis.Client
}

// NewBookmarkStore creates a BookmarkStore backed by c.
func NewBookmarkStore(c *Client) *BookmarkStore {
	return &BookmarkStore{rdb: c.Underlying()}
}

// List returns every bookmark ordered by creation time, then key.
func (s *BookmarkStore) List(ctx context.Context) ([]domain.BookmarkRecord, error) {
	all, err := s.rdb.HGetAll(ctx, bookmarksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list bookmarks: %w", err)
	}
	out := make([]domain.BookmarkRecord, 0, len(all))
	for key, raw := range all {
		var rec domain.BookmarkRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("redis: decode bookmark %s: %w", key, err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// Get returns the bookmark under key.
func (s *BookmarkStore) Get(ctx context.Context, key string) (domain.BookmarkRecord, error) {
	raw, err := s.rdb.HGet(ctx, bookmarksKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BookmarkRecord{}, fmt.Errorf("redis: get bookmark %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.BookmarkRecord{}, fmt.Errorf("redis: get bookmark %s: %w", key, err)
	}
	var rec domain.BookmarkRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.BookmarkRecord{}, fmt.Errorf("redis: decode bookmark %s: %w", key, err)
	}
	return rec, nil
}

// Add stores rec under key with HSETNX.
func (s *BookmarkStore) Add(ctx context.Context, rec domain.BookmarkRecord, key string) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: encode bookmark %s: %w", key, err)
	}
	ok, err := s.rdb.HSetNX(ctx, bookmarksKey, key, raw).Result()
	if err != nil {
		return fmt.Errorf("redis: add bookmark %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("redis: add bookmark %s: %w", key, domain.ErrAlreadyExists)
	}
	return nil
}

// Delete removes the bookmark under key.
func (s *BookmarkStore) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.HDel(ctx, bookmarksKey, key).Result()
	if err != nil {
		return fmt.Errorf("redis: delete bookmark %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis: delete bookmark %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

var _ domain.BookmarkStore = (*BookmarkStore)(nil)
