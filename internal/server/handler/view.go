package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/evbets/evboard/internal/service"
	"github.com/evbets/evboard/internal/valuebet"
)

// ViewBuilder builds view models.
type ViewBuilder interface {
	Build(ctx context.Context, f valuebet.ViewFilters) (service.ViewResponse, error)
}

// ViewHandler serves the grouped, filtered quote view.
type ViewHandler struct {
	views  ViewBuilder
	logger *slog.Logger
}

// NewViewHandler creates a ViewHandler.
func NewViewHandler(views ViewBuilder, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{views: views, logger: logger}
}

// GetView returns the view for the given viewer parameters.
// GET /api/view?sport=Football&league=all&show_all=false&sort=asc&max_odds=none&bookmarks_only=false
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := valuebet.ParseSortDirection(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxOdds, err := valuebet.ParseOddsCap(q.Get("max_odds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.views.Build(r.Context(), valuebet.ViewFilters{
		Sport:         q.Get("sport"),
		League:        q.Get("league"),
		ShowAll:       queryBool(r, "show_all"),
		Sort:          sort,
		MaxOdds:       maxOdds,
		BookmarksOnly: queryBool(r, "bookmarks_only"),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "build view failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to build view")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
