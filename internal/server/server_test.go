package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/cache/memory"
	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/observability"
	"github.com/evbets/evboard/internal/platform/oddsapi"
	"github.com/evbets/evboard/internal/server/handler"
	"github.com/evbets/evboard/internal/service"
	memstore "github.com/evbets/evboard/internal/store/memory"
)

type noFeed struct{}

func (noFeed) FetchValueBets(context.Context, string) (oddsapi.Response, error) {
	return oddsapi.Response{}, context.Canceled
}

type queue struct{ n int }

func (q *queue) Trigger() bool { q.n++; return q.n == 1 }

func newTestHandler(t *testing.T, apiKey string) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.Default()
	require.NoError(t, err)

	bus := memory.NewSignalBus()
	feed := service.NewFeedService(service.FeedDeps{
		Source:  noFeed{},
		Catalog: cat,
		Bus:     bus,
		Logger:  logger,
	})
	bookmarks := service.NewBookmarkService(memstore.NewBookmarkStore(), logger, service.WithBookmarkBus(bus))
	views := service.NewViewService(feed, bookmarks, cat.LeagueNames(), nil, logger)
	metrics := observability.NewMetrics("test", nil)

	h := NewHandler(Config{APIKey: apiKey}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Status:    handler.NewStatusHandler("server", time.Now(), feed),
		Feed:      handler.NewFeedHandler(feed, &queue{}, cat, logger),
		View:      handler.NewViewHandler(views, logger),
		Bookmarks: handler.NewBookmarkHandler(bookmarks, views, logger),
	}, nil, metrics, logger)
	return h, metrics
}

func serve(h http.Handler, method, target, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h, _ := newTestHandler(t, "")

	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/bookmakers", http.StatusOK},
		{http.MethodGet, "/api/view", http.StatusOK},
		{http.MethodGet, "/api/view?sort=bogus", http.StatusBadRequest},
		{http.MethodPost, "/api/refresh", http.StatusAccepted},
		{http.MethodGet, "/api/fetches/recent", http.StatusOK},
		{http.MethodGet, "/api/bookmarks", http.StatusOK},
		{http.MethodPost, "/api/bookmarks/unknown/toggle", http.StatusNotFound},
		{http.MethodPost, "/api/bookmarks/export", http.StatusNotImplemented},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodDelete, "/api/bookmarks", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/nothing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.method, tt.target, "").Code)
		})
	}
}

func TestViewResponseShape(t *testing.T) {
	h, _ := newTestHandler(t, "")

	rec := serve(h, http.MethodGet, "/api/view?sport=Football", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		View   map[string]any `json:"view"`
		Status struct {
			Bookmaker   string `json:"bookmaker"`
			HasSnapshot bool   `json:"hasSnapshot"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Status.Bookmaker)
	assert.False(t, body.Status.HasSnapshot)
}

func TestAPIKeyGuardsAllButPublicRoutes(t *testing.T) {
	h, _ := newTestHandler(t, "k")

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/view", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/view", "k").Code)
}

func TestSelectBookmakerThroughRouter(t *testing.T) {
	h, _ := newTestHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/bookmaker", strings.NewReader(`{"bookmaker":"Unibet"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(h, http.MethodGet, "/api/bookmakers", "")
	var body struct {
		Selected string `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unibet", body.Selected)

	req = httptest.NewRequest(http.MethodPost, "/api/bookmaker", strings.NewReader(`{"bookmaker":"Nowhere"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
