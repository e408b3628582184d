package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/valuebet"
)

// FeedStater exposes the current feed state.
type FeedStater interface {
	State() FeedState
}

// BookmarkLister reads saved bookmarks.
type BookmarkLister interface {
	ListFor(ctx context.Context, bookmaker string) ([]domain.BookmarkRecord, error)
	Starred(ctx context.Context) (map[string]bool, error)
}

// FeedStatus is the loading / freshness part of a view response.
type FeedStatus struct {
	Bookmaker    string               `json:"bookmaker"`
	Loading      bool                 `json:"loading"`
	HasSnapshot  bool                 `json:"hasSnapshot"`
	FetchID      string               `json:"fetchId,omitempty"`
	Shape        domain.FeedShape     `json:"shape,omitempty"`
	Summary      domain.FilterSummary `json:"summary"`
	LastUpdated  time.Time            `json:"lastUpdated,omitzero"`
	LastError    string               `json:"lastError,omitempty"`
	LastFailedAt time.Time            `json:"lastFailedAt,omitzero"`
}

// StatusOf derives a FeedStatus from st.
func StatusOf(st FeedState) FeedStatus {
	fs := FeedStatus{
		Bookmaker:    st.Bookmaker,
		Loading:      st.Loading,
		HasSnapshot:  st.HasSnapshot,
		LastUpdated:  st.LastUpdated,
		LastError:    st.LastError,
		LastFailedAt: st.LastFailedAt,
	}
	if st.HasSnapshot {
		fs.FetchID = st.Snapshot.FetchID
		fs.Shape = st.Snapshot.Shape
		fs.Summary = st.Snapshot.Summary
	}
	return fs
}

// ViewResponse is what a viewer renders.
type ViewResponse struct {
	View   valuebet.View `json:"view"`
	Status FeedStatus    `json:"status"`
}

// ViewService builds view models from the current snapshot or from the
// saved bookmarks.
type ViewService struct {
	feed      FeedStater
	bookmarks BookmarkLister
	allowList []string
	observer  valuebet.Observer
	logger    *slog.Logger
	now       func() time.Time
}

// NewViewService creates a ViewService. allowList is the football league
// allow-list used for the league menu. observer may be nil.
func NewViewService(feed FeedStater, bookmarks BookmarkLister, allowList []string, observer valuebet.Observer, logger *slog.Logger) *ViewService {
	return &ViewService{
		feed:      feed,
		bookmarks: bookmarks,
		allowList: allowList,
		observer:  observer,
		logger:    logger.With(slog.String("component", "view_service")),
		now:       time.Now,
	}
}

// Build returns the view for f. In bookmarks-only mode the source is the
// bookmarks saved from the selected bookmaker rather than the live snapshot.
// A failing bookmark store degrades to an empty starred set for live views.
func (s *ViewService) Build(ctx context.Context, f valuebet.ViewFilters) (ViewResponse, error) {
	st := s.feed.State()
	f.Bookmaker = st.Bookmaker

	var quotes []domain.Quote
	if f.BookmarksOnly {
		recs, err := s.bookmarks.ListFor(ctx, st.Bookmaker)
		if err != nil {
			return ViewResponse{}, fmt.Errorf("view_service: build: %w", err)
		}
		quotes = make([]domain.Quote, 0, len(recs))
		for _, r := range recs {
			quotes = append(quotes, r.Quote)
		}
	} else {
		quotes = st.Snapshot.Quotes
	}

	starred, err := s.bookmarks.Starred(ctx)
	if err != nil {
		if f.BookmarksOnly {
			return ViewResponse{}, fmt.Errorf("view_service: build: %w", err)
		}
		s.logger.WarnContext(ctx, "starred set unavailable", slog.String("error", err.Error()))
		starred = map[string]bool{}
	}

	view := valuebet.BuildView(valuebet.ViewInput{
		Quotes:    quotes,
		Filters:   f,
		Starred:   starred,
		AllowList: s.allowList,
		Now:       s.now(),
		Observer:  s.observer,
	})
	return ViewResponse{View: view, Status: StatusOf(st)}, nil
}

// FindQuote looks id up in the current snapshot, then among the bookmarks
// of the selected bookmaker. It returns domain.ErrNotFound otherwise.
func (s *ViewService) FindQuote(ctx context.Context, id string) (domain.Quote, string, error) {
	st := s.feed.State()
	for _, q := range st.Snapshot.Quotes {
		if q.ID.String() == id {
			return q, st.Bookmaker, nil
		}
	}
	recs, err := s.bookmarks.ListFor(ctx, st.Bookmaker)
	if err != nil {
		return domain.Quote{}, "", fmt.Errorf("view_service: find quote: %w", err)
	}
	for _, r := range recs {
		if r.Key() == id {
			return r.Quote, r.Bookmaker, nil
		}
	}
	return domain.Quote{}, "", fmt.Errorf("view_service: find quote %s: %w", id, domain.ErrNotFound)
}
