package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/service"
)

// BookmarkService is what the bookmark endpoints need from the service layer.
type BookmarkService interface {
	List(ctx context.Context) ([]domain.BookmarkRecord, error)
	ListFor(ctx context.Context, bookmaker string) ([]domain.BookmarkRecord, error)
	Toggle(ctx context.Context, q domain.Quote, bookmaker string) (bool, error)
	Export(ctx context.Context) (string, error)
}

// QuoteFinder resolves a quote id to the quote and its bookmaker.
type QuoteFinder interface {
	FindQuote(ctx context.Context, id string) (domain.Quote, string, error)
}

// BookmarkHandler serves the bookmark endpoints.
type BookmarkHandler struct {
	bookmarks BookmarkService
	quotes    QuoteFinder
	logger    *slog.Logger
}

// NewBookmarkHandler creates a BookmarkHandler.
func NewBookmarkHandler(bookmarks BookmarkService, quotes QuoteFinder, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks, quotes: quotes, logger: logger}
}

// ListBookmarks returns saved bookmarks, optionally for one bookmaker.
// GET /api/bookmarks?bookmaker=Unibet
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	var (
		recs []domain.BookmarkRecord
		err  error
	)
	if bm := r.URL.Query().Get("bookmaker"); bm != "" {
		recs, err = h.bookmarks.ListFor(r.Context(), bm)
	} else {
		recs, err = h.bookmarks.List(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list bookmarks failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": recs, "total": len(recs)})
}

// Toggle stars or un-stars a quote from the current feed or the saved
// bookmarks. The response carries the state confirmed by the store.
// POST /api/bookmarks/{id}/toggle
func (h *BookmarkHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing quote id")
		return
	}

	q, bookmaker, err := h.quotes.FindQuote(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "quote not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "find quote failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to look up quote")
		return
	}

	starred, err := h.bookmarks.Toggle(r.Context(), q, bookmaker)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "toggle bookmark failed",
			slog.String("quote_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "bookmark was not changed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote_id": id, "starred": starred})
}

// Export writes all bookmarks to object storage.
// POST /api/bookmarks/export
func (h *BookmarkHandler) Export(w http.ResponseWriter, r *http.Request) {
	key, err := h.bookmarks.Export(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrExportUnavailable) {
			writeError(w, http.StatusNotImplemented, "export is not configured")
			return
		}
		h.logger.ErrorContext(r.Context(), "export bookmarks failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"key": key})
}
