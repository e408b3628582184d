// Package memory provides process-local implementations of the domain
// stores, used when no database is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/evbets/evboard/internal/domain"
)

// BookmarkStore is a map-backed domain.BookmarkStore. It is safe for
// concurrent use.
type BookmarkStore struct {
	mu   sync.RWMutex
	recs map[string]domain.BookmarkRecord
}

// NewBookmarkStore returns an empty store.
func NewBookmarkStore() *BookmarkStore {
	return &BookmarkStore{recs: make(map[string]domain.BookmarkRecord)}
}

// List returns every bookmark ordered by creation time, then key.
func (s *BookmarkStore) List(_ context.Context) ([]domain.BookmarkRecord, error) {
	s.mu.RLock()
	out := make([]domain.BookmarkRecord, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// Get returns the record under key.
func (s *BookmarkStore) Get(_ context.Context, key string) (domain.BookmarkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[key]
	if !ok {
		return domain.BookmarkRecord{}, fmt.Errorf("memory: get bookmark %s: %w", key, domain.ErrNotFound)
	}
	return r, nil
}

// Add stores rec under key.
func (s *BookmarkStore) Add(_ context.Context, rec domain.BookmarkRecord, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[key]; ok {
		return fmt.Errorf("memory: add bookmark %s: %w", key, domain.ErrAlreadyExists)
	}
	s.recs[key] = rec
	return nil
}

// Delete removes the record under key.
func (s *BookmarkStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[key]; !ok {
		return fmt.Errorf("memory: delete bookmark %s: %w", key, domain.ErrNotFound)
	}
	delete(s.recs, key)
	return nil
}
