package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/observability"
)

// ErrExportUnavailable is returned by Export when no blob storage is wired.
var ErrExportUnavailable = errors.New("bookmark export is not configured")

// BookmarkExporter writes a bookmark export and returns its object key.
type BookmarkExporter interface {
	ExportBookmarks(ctx context.Context, prefix string, recs []domain.BookmarkRecord) (string, error)
}

// BookmarkService stars and un-stars quotes. Starred state is only ever
// reported after the store has confirmed the change.
type BookmarkService struct {
	store        domain.BookmarkStore
	audit        domain.AuditStore
	bus          domain.SignalBus
	exporter     BookmarkExporter
	exportPrefix string
	metrics      *observability.Metrics
	logger       *slog.Logger
	now          func() time.Time

	// toggles are serialized so a double click cannot add and delete the
	// same record concurrently.
	mu sync.Mutex
}

// BookmarkOption configures optional BookmarkService collaborators.
type BookmarkOption func(*BookmarkService)

// WithBookmarkAudit records every toggle in the audit log.
func WithBookmarkAudit(a domain.AuditStore) BookmarkOption {
	return func(s *BookmarkService) { s.audit = a }
}

// WithBookmarkBus publishes toggles on the bookmarks channel.
func WithBookmarkBus(b domain.SignalBus) BookmarkOption {
	return func(s *BookmarkService) { s.bus = b }
}

// WithBookmarkExport enables Export to blob storage under prefix.
func WithBookmarkExport(e BookmarkExporter, prefix string) BookmarkOption {
	return func(s *BookmarkService) {
		s.exporter = e
		s.exportPrefix = prefix
	}
}

// WithBookmarkMetrics counts toggles.
func WithBookmarkMetrics(m *observability.Metrics) BookmarkOption {
	return func(s *BookmarkService) { s.metrics = m }
}

// NewBookmarkService creates a BookmarkService over store.
func NewBookmarkService(store domain.BookmarkStore, logger *slog.Logger, opts ...BookmarkOption) *BookmarkService {
	s := &BookmarkService{
		store:        store,
		logger:       logger.With(slog.String("component", "bookmark_service")),
		now:          time.Now,
		exportPrefix: "bookmarks",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns every saved bookmark.
func (s *BookmarkService) List(ctx context.Context) ([]domain.BookmarkRecord, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookmark_service: list: %w", err)
	}
	return recs, nil
}

// ListFor returns the bookmarks saved from bookmaker's feed.
func (s *BookmarkService) ListFor(ctx context.Context, bookmaker string) ([]domain.BookmarkRecord, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := recs[:0:0]
	for _, r := range recs {
		if r.Bookmaker == bookmaker {
			out = append(out, r)
		}
	}
	return out, nil
}

// Starred returns the set of starred quote ids.
func (s *BookmarkService) Starred(ctx context.Context) (map[string]bool, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(recs))
	for _, r := range recs {
		set[r.Key()] = true
	}
	return set, nil
}

// Toggle stars q when it is not saved and un-stars it when it is. It returns
// the new starred state. On error nothing was changed.
func (s *BookmarkService) Toggle(ctx context.Context, q domain.Quote, bookmaker string) (bool, error) {
	key := q.ID.String()
	if key == "" {
		return false, fmt.Errorf("bookmark_service: toggle: quote has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	starred, err := s.flip(ctx, q, key, bookmaker)
	if err != nil {
		return false, fmt.Errorf("bookmark_service: toggle %s: %w", key, err)
	}

	s.metrics.RecordToggle(starred)
	s.logger.InfoContext(ctx, "bookmark toggled",
		slog.String("quote_id", key),
		slog.String("bookmaker", bookmaker),
		slog.Bool("starred", starred),
	)

	action := "bookmark.removed"
	if starred {
		action = "bookmark.added"
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, action, map[string]any{"quote_id": key, "bookmaker": bookmaker}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, domain.BookmarkEvent{QuoteID: key, Bookmaker: bookmaker, Starred: starred, At: s.now()})
	return starred, nil
}

// flip performs the store write. A record that vanished or appeared between
// the read and the write is treated as already in the target state.
func (s *BookmarkService) flip(ctx context.Context, q domain.Quote, key, bookmaker string) (bool, error) {
	_, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		if derr := s.store.Delete(ctx, key); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
			return false, derr
		}
		return false, nil
	case errors.Is(err, domain.ErrNotFound):
		rec := domain.BookmarkRecord{Quote: q, Bookmaker: bookmaker, CreatedAt: s.now().UTC()}
		if aerr := s.store.Add(ctx, rec, key); aerr != nil && !errors.Is(aerr, domain.ErrAlreadyExists) {
			return false, aerr
		}
		return true, nil
	default:
		return false, err
	}
}

func (s *BookmarkService) publish(ctx context.Context, ev domain.BookmarkEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelBookmarks, payload); err != nil {
		s.logger.WarnContext(ctx, "publish bookmark event failed", slog.String("error", err.Error()))
	}
}

// Export writes every bookmark to blob storage as JSONL and returns the
// object key.
func (s *BookmarkService) Export(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", fmt.Errorf("bookmark_service: export: %w", ErrExportUnavailable)
	}
	recs, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	key, err := s.exporter.ExportBookmarks(ctx, s.exportPrefix, recs)
	if err != nil {
		return "", fmt.Errorf("bookmark_service: export: %w", err)
	}
	s.logger.InfoContext(ctx, "bookmarks exported",
		slog.String("key", key),
		slog.Int("count", len(recs)),
	)
	return key, nil
}
