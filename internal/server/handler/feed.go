package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/service"
)

// FeedService is what the feed endpoints need from the service layer.
type FeedService interface {
	Select(ctx context.Context, bookmaker string) error
	State() service.FeedState
	RecentFetches(ctx context.Context, n int) ([]domain.FeedEvent, error)
}

// RefreshTrigger queues a feed refresh.
type RefreshTrigger interface {
	Trigger() bool
}

// FeedHandler serves bookmaker selection and refresh endpoints.
type FeedHandler struct {
	feed    FeedService
	trigger RefreshTrigger
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(feed FeedService, trigger RefreshTrigger, cat *catalog.Catalog, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, trigger: trigger, catalog: cat, logger: logger}
}

// ListBookmakers returns the selectable bookmakers and the current choice.
// GET /api/bookmakers
func (h *FeedHandler) ListBookmakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bookmakers": h.catalog.Bookmakers,
		"selected":   h.feed.State().Bookmaker,
	})
}

type selectRequest struct {
	Bookmaker string `json:"bookmaker"`
}

// SelectBookmaker switches the feed to another bookmaker and queues a
// refresh for it.
// POST /api/bookmaker {"bookmaker":"Unibet"}
func (h *FeedHandler) SelectBookmaker(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bookmaker := strings.TrimSpace(req.Bookmaker)
	if bookmaker == "" {
		writeError(w, http.StatusBadRequest, "bookmaker is required")
		return
	}

	if err := h.feed.Select(r.Context(), bookmaker); err != nil {
		h.logger.WarnContext(r.Context(), "select bookmaker failed",
			slog.String("bookmaker", bookmaker),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrUnknownBookmaker) {
			writeError(w, http.StatusBadRequest, "unknown bookmaker")
			return
		}
		writeError(w, statusFor(err), "failed to select bookmaker")
		return
	}
	queued := h.trigger.Trigger()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"bookmaker":      bookmaker,
		"refresh_queued": queued,
	})
}

// Refresh queues a refresh of the selected bookmaker. Concurrent requests
// coalesce into one pending refresh.
// POST /api/refresh
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	queued := h.trigger.Trigger()
	h.logger.InfoContext(r.Context(), "refresh requested", slog.Bool("queued", queued))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"queued":       queued,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// RecentFetches returns the newest feed fetch summaries.
// GET /api/fetches/recent?limit=20
func (h *FeedHandler) RecentFetches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 200)
	events, err := h.feed.RecentFetches(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "recent fetches failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read fetch history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fetches": events})
}
