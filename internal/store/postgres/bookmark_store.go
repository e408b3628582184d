package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evbets/evboard/internal/domain"
)

// BookmarkStore implements domain.BookmarkStore. The full record is kept as
// JSONB so quotes round-trip unchanged whatever the feed put in them.
type BookmarkStore struct {
	pool *pgxpool.Pool
}

// NewBookmarkStore creates a BookmarkStore backed by pool.
func NewBookmarkStore(pool *pgxpool.Pool) *BookmarkStore {
	return &BookmarkStore{pool: pool}
}

// List returns every bookmark, oldest first.
func (s *BookmarkStore) List(ctx context.Context) ([]domain.BookmarkRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM bookmarks ORDER BY created_at, quote_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bookmarks: %w", err)
	}
	defer rows.Close()

	out := []domain.BookmarkRecord{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan bookmark: %w", err)
		}
		var rec domain.BookmarkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("postgres: decode bookmark: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bookmarks rows: %w", err)
	}
	return out, nil
}

// Get returns the bookmark stored under key.
func (s *BookmarkStore) Get(ctx context.Context, key string) (domain.BookmarkRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM bookmarks WHERE quote_id = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BookmarkRecord{}, fmt.Errorf("postgres: get bookmark %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return domain.BookmarkRecord{}, fmt.Errorf("postgres: get bookmark %s: %w", key, err)
	}
	var rec domain.BookmarkRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.BookmarkRecord{}, fmt.Errorf("postgres: decode bookmark %s: %w", key, err)
	}
	return rec, nil
}

// Add inserts rec under key. An existing key yields domain.ErrAlreadyExists.
func (s *BookmarkStore) Add(ctx context.Context, rec domain.BookmarkRecord, key string) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: encode bookmark %s: %w", key, err)
	}
	const query = `
		INSERT INTO bookmarks (quote_id, bookmaker, event_date, record, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quote_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, key, rec.Bookmaker, rec.Event.Date, raw, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: add bookmark %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: add bookmark %s: %w", key, domain.ErrAlreadyExists)
	}
	return nil
}

// Delete removes the bookmark under key. A missing key yields
// domain.ErrNotFound.
func (s *BookmarkStore) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE quote_id = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres: delete bookmark %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete bookmark %s: %w", key, domain.ErrNotFound)
	}
	return nil
}
