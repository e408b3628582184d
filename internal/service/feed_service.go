package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/observability"
	"github.com/evbets/evboard/internal/platform/oddsapi"
	"github.com/evbets/evboard/internal/valuebet"
)

// FeedSource fetches one raw batch for a bookmaker.
type FeedSource interface {
	FetchValueBets(ctx context.Context, bookmaker string) (oddsapi.Response, error)
}

// RawArchiver stores a raw response body under key.
type RawArchiver interface {
	ArchiveRaw(ctx context.Context, key string, body []byte) error
}

// FeedState is a point-in-time copy of the feed service state.
type FeedState struct {
	Bookmaker    string              `json:"bookmaker"`
	Snapshot     domain.FeedSnapshot `json:"-"`
	HasSnapshot  bool                `json:"has_snapshot"`
	Loading      bool                `json:"loading"`
	LastUpdated  time.Time           `json:"last_updated,omitzero"`
	LastError    string              `json:"last_error,omitempty"`
	LastFailedAt time.Time           `json:"last_failed_at,omitzero"`
	Generation   uint64              `json:"generation"`
}

// FeedDeps are the collaborators of a FeedService. Source, Catalog and
// Logger are required; the rest are optional.
type FeedDeps struct {
	Source   FeedSource
	Catalog  *catalog.Catalog
	Preparer valuebet.Preparer
	Cache    domain.QuoteCache
	Locks    domain.LockManager
	LockTTL  time.Duration
	Bus      domain.SignalBus
	Archiver RawArchiver
	// ArchivePrefix roots raw archives; see oddsapi.ArchivePath.
	ArchivePrefix string
	Audit         domain.AuditStore
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// FeedService owns the selected bookmaker and its prepared snapshot. Each
// Refresh gets a generation number and cancels the fetch before it; a
// result whose generation is no longer current is discarded with
// domain.ErrSuperseded, so at most one fetch can change the state.
type FeedService struct {
	deps   FeedDeps
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  FeedState
}

// NewFeedService creates a FeedService on the catalog's default bookmaker.
func NewFeedService(deps FeedDeps) *FeedService {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	return &FeedService{
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "feed_service")),
		now:    time.Now,
		newID:  uuid.NewString,
		state:  FeedState{Bookmaker: deps.Catalog.DefaultBookmaker()},
	}
}

// State returns a copy of the current state.
func (s *FeedService) State() FeedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Generation = s.gen
	return st
}

// Bookmaker returns the selected bookmaker.
func (s *FeedService) Bookmaker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Bookmaker
}

// Select switches to bookmaker and cancels any in-flight fetch. The previous
// bookmaker's quotes are dropped; a cached snapshot for the new one is shown
// until the next Refresh completes.
func (s *FeedService) Select(ctx context.Context, bookmaker string) error {
	if !s.deps.Catalog.HasBookmaker(bookmaker) {
		return fmt.Errorf("feed_service: select %q: %w", bookmaker, domain.ErrUnknownBookmaker)
	}

	s.mu.Lock()
	if s.state.Bookmaker == bookmaker {
		s.mu.Unlock()
		return nil
	}
	previous := s.state.Bookmaker
	s.supersedeLocked()
	s.state = FeedState{Bookmaker: bookmaker}
	s.mu.Unlock()

	if s.deps.Cache != nil {
		if snap, err := s.deps.Cache.GetSnapshot(ctx, bookmaker); err == nil {
			s.mu.Lock()
			if s.state.Bookmaker == bookmaker && !s.state.HasSnapshot {
				s.state.Snapshot = snap
				s.state.HasSnapshot = true
				s.state.LastUpdated = snap.FetchedAt
			}
			s.mu.Unlock()
		}
	}

	s.logger.InfoContext(ctx, "bookmaker selected",
		slog.String("from", previous),
		slog.String("to", bookmaker),
	)
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Log(ctx, "bookmaker.selected", map[string]any{"from": previous, "to": bookmaker}); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// supersedeLocked invalidates and cancels the in-flight fetch. s.mu held.
func (s *FeedService) supersedeLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Refresh fetches and prepares the selected bookmaker's feed. On success the
// new snapshot replaces the old one. On failure the previous snapshot is
// kept and LastError is set. A refresh overtaken by a newer Refresh or
// Select returns domain.ErrSuperseded and changes nothing.
func (s *FeedService) Refresh(ctx context.Context) (domain.FeedSnapshot, error) {
	s.mu.Lock()
	s.supersedeLocked()
	gen := s.gen
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	bookmaker := s.state.Bookmaker
	s.state.Loading = true
	s.mu.Unlock()
	defer cancel()

	start := s.now()
	snap, resp, coalesced, err := s.fetch(fctx, bookmaker)
	elapsed := s.now().Sub(start)

	if !s.commit(gen, snap, err) {
		s.deps.Metrics.RecordFetch(bookmaker, observability.FetchSuperseded, elapsed)
		return domain.FeedSnapshot{}, fmt.Errorf("feed_service: refresh %s: %w", bookmaker, domain.ErrSuperseded)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.FeedSnapshot{}, err
		}
		s.deps.Metrics.RecordFetch(bookmaker, observability.FetchError, elapsed)
		s.logger.ErrorContext(ctx, "refresh failed",
			slog.String("bookmaker", bookmaker),
			slog.String("error", err.Error()),
		)
		s.announce(ctx, domain.FeedEvent{Bookmaker: bookmaker, Error: err.Error(), At: s.now()})
		return domain.FeedSnapshot{}, err
	}

	switch {
	case coalesced:
		s.deps.Metrics.RecordFetch(bookmaker, observability.FetchCoalesced, elapsed)
	case !snap.Shape.Recognized():
		s.deps.Metrics.RecordFetch(bookmaker, observability.FetchUnrecognized, elapsed)
		s.logger.WarnContext(ctx, "unrecognized feed shape",
			slog.String("bookmaker", bookmaker),
			slog.Any("keys", resp.RawKeys),
		)
	default:
		s.deps.Metrics.RecordFetch(bookmaker, observability.FetchOK, elapsed)
	}
	s.deps.Metrics.RecordSnapshot(bookmaker, len(snap.Quotes), snap.FetchedAt)

	s.logger.InfoContext(ctx, "snapshot updated",
		slog.String("bookmaker", bookmaker),
		slog.String("fetch_id", snap.FetchID),
		slog.String("shape", string(snap.Shape)),
		slog.Int("total", snap.Summary.Total),
		slog.Int("invalid_date", snap.Summary.InvalidDate),
		slog.Int("too_far", snap.Summary.TooFar),
		slog.Int("filtered", snap.Summary.SportLeagueFiltered),
		slog.Int("remaining", snap.Summary.Remaining),
		slog.Bool("coalesced", coalesced),
		slog.Duration("elapsed", elapsed),
	)

	if !coalesced {
		s.cacheSnapshot(ctx, snap)
		s.archive(ctx, snap, resp.Body)
	}
	s.announce(ctx, domain.FeedEvent{
		FetchID:   snap.FetchID,
		Bookmaker: bookmaker,
		Shape:     snap.Shape,
		Summary:   snap.Summary,
		At:        snap.FetchedAt,
	})
	return snap, nil
}

// Apply prepares an already fetched response, e.g. one replayed from the
// archive, and makes it the current snapshot.
func (s *FeedService) Apply(ctx context.Context, resp oddsapi.Response) (domain.FeedSnapshot, error) {
	s.mu.Lock()
	s.supersedeLocked()
	gen := s.gen
	s.state.Bookmaker = resp.Bookmaker
	s.mu.Unlock()

	snap := s.prepare(resp)
	if !s.commit(gen, snap, nil) {
		return domain.FeedSnapshot{}, fmt.Errorf("feed_service: apply %s: %w", resp.Bookmaker, domain.ErrSuperseded)
	}
	s.cacheSnapshot(ctx, snap)
	s.deps.Metrics.RecordSnapshot(snap.Bookmaker, len(snap.Quotes), snap.FetchedAt)
	return snap, nil
}

// fetch returns the prepared snapshot for bookmaker. When another replica
// holds the fetch lock and a cached snapshot exists, that snapshot is
// returned with coalesced set. Nothing is cached here: only a committed
// snapshot may reach the cache.
func (s *FeedService) fetch(ctx context.Context, bookmaker string) (snap domain.FeedSnapshot, resp oddsapi.Response, coalesced bool, err error) {
	if s.deps.Locks != nil {
		unlock, lerr := s.deps.Locks.Acquire(ctx, "feed:"+bookmaker, s.deps.LockTTL)
		switch {
		case lerr == nil:
			defer unlock()
		case errors.Is(lerr, domain.ErrLockHeld) && s.deps.Cache != nil:
			if cached, cerr := s.deps.Cache.GetSnapshot(ctx, bookmaker); cerr == nil {
				return cached, oddsapi.Response{}, true, nil
			}
		default:
			s.logger.WarnContext(ctx, "fetch lock unavailable, fetching anyway",
				slog.String("bookmaker", bookmaker),
				slog.String("error", lerr.Error()),
			)
		}
	}

	resp, err = s.deps.Source.FetchValueBets(ctx, bookmaker)
	if err != nil {
		return domain.FeedSnapshot{}, oddsapi.Response{}, false, err
	}
	return s.prepare(resp), resp, false, nil
}

func (s *FeedService) prepare(resp oddsapi.Response) domain.FeedSnapshot {
	fetchedAt := resp.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}
	quotes, summary := s.deps.Preparer.Prepare(resp.Items, s.now())
	return domain.FeedSnapshot{
		FetchID:   s.newID(),
		Bookmaker: resp.Bookmaker,
		Shape:     resp.Shape,
		Quotes:    quotes,
		Summary:   summary,
		FetchedAt: fetchedAt,
	}
}

// commit applies the outcome of generation gen. It reports false when gen
// has been superseded, in which case nothing changes.
func (s *FeedService) commit(gen uint64, snap domain.FeedSnapshot, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.cancel = nil
	s.state.Loading = false
	switch {
	case err == nil:
		s.state.Snapshot = snap
		s.state.HasSnapshot = true
		s.state.LastUpdated = snap.FetchedAt
		s.state.LastError = ""
	case errors.Is(err, context.Canceled):
	default:
		s.state.LastError = err.Error()
		s.state.LastFailedAt = s.now()
	}
	return true
}

func (s *FeedService) cacheSnapshot(ctx context.Context, snap domain.FeedSnapshot) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SetSnapshot(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "cache snapshot failed",
			slog.String("bookmaker", snap.Bookmaker),
			slog.String("error", err.Error()),
		)
	}
}

func (s *FeedService) archive(ctx context.Context, snap domain.FeedSnapshot, body []byte) {
	if s.deps.Archiver == nil || len(body) == 0 {
		return
	}
	key := oddsapi.ArchivePath(s.deps.ArchivePrefix, snap.Bookmaker, snap.FetchedAt, snap.FetchID)
	if err := s.deps.Archiver.ArchiveRaw(ctx, key, body); err != nil {
		s.logger.WarnContext(ctx, "archive raw body failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// announce publishes ev on the feed channel and appends it to the summary
// stream. Bus failures are logged only.
func (s *FeedService) announce(ctx context.Context, ev domain.FeedEvent) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, domain.ChannelFeed, payload); err != nil {
		s.logger.WarnContext(ctx, "publish feed event failed", slog.String("error", err.Error()))
	}
	if err := s.deps.Bus.StreamAppend(ctx, domain.StreamFeedSummary, payload); err != nil {
		s.logger.WarnContext(ctx, "append feed summary failed", slog.String("error", err.Error()))
	}
}

// RecentFetches returns up to n feed events, newest first.
func (s *FeedService) RecentFetches(ctx context.Context, n int) ([]domain.FeedEvent, error) {
	if s.deps.Bus == nil {
		return []domain.FeedEvent{}, nil
	}
	msgs, err := s.deps.Bus.StreamRecent(ctx, domain.StreamFeedSummary, n)
	if err != nil {
		return nil, fmt.Errorf("feed_service: recent fetches: %w", err)
	}
	out := make([]domain.FeedEvent, 0, len(msgs))
	for _, m := range msgs {
		var ev domain.FeedEvent
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
