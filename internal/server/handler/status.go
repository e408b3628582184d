package handler

import (
	"net/http"
	"time"

	"github.com/evbets/evboard/internal/service"
)

// FeedStater exposes the feed state for status reporting.
type FeedStater interface {
	State() service.FeedState
}

// StatusHandler serves the run mode and feed freshness.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	feed      FeedStater
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, feed FeedStater) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, feed: feed}
}

// GetStatus responds with the run mode, uptime and feed status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.feed.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"generation":     st.Generation,
		"feed":           service.StatusOf(st),
	})
}
