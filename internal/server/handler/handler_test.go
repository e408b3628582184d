package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/service"
	"github.com/evbets/evboard/internal/valuebet"
)

var (
	discard   = slog.New(slog.NewTextHandler(io.Discard, nil))
	testStart = time.Now().Add(-time.Minute)
)

type fakeFeed struct {
	state    service.FeedState
	selected []string
	selErr   error
	fetches  []domain.FeedEvent
	asked    int
}

func (f *fakeFeed) Select(_ context.Context, bm string) error {
	if f.selErr != nil {
		return f.selErr
	}
	f.selected = append(f.selected, bm)
	f.state.Bookmaker = bm
	return nil
}

func (f *fakeFeed) State() service.FeedState { return f.state }

func (f *fakeFeed) RecentFetches(_ context.Context, n int) ([]domain.FeedEvent, error) {
	f.asked = n
	return f.fetches, nil
}

type fakeTrigger struct{ calls int }

func (t *fakeTrigger) Trigger() bool {
	t.calls++
	return t.calls == 1
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Bookmakers: []catalog.Bookmaker{{Name: "Unibet"}, {Name: "Bet365"}}}
}

func TestFeedHandler_SelectBookmaker(t *testing.T) {
	feed := &fakeFeed{}
	trig := &fakeTrigger{}
	h := NewFeedHandler(feed, trig, testCatalog(), discard)

	rec := httptest.NewRecorder()
	h.SelectBookmaker(rec, httptest.NewRequest(http.MethodPost, "/api/bookmaker", strings.NewReader(`{"bookmaker":" Unibet "}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"Unibet"}, feed.selected)
	body := decode(t, rec)
	assert.Equal(t, "Unibet", body["bookmaker"])
	assert.Equal(t, true, body["refresh_queued"])
}

func TestFeedHandler_SelectBookmakerRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		selErr error
		want   int
	}{
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"unknown field", `{"bm":"Unibet"}`, nil, http.StatusBadRequest},
		{"empty", `{"bookmaker":"  "}`, nil, http.StatusBadRequest},
		{"unknown bookmaker", `{"bookmaker":"Nope"}`, domain.ErrUnknownBookmaker, http.StatusBadRequest},
		{"service failure", `{"bookmaker":"Unibet"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := &fakeTrigger{}
			h := NewFeedHandler(&fakeFeed{selErr: tt.selErr}, trig, testCatalog(), discard)
			rec := httptest.NewRecorder()
			h.SelectBookmaker(rec, httptest.NewRequest(http.MethodPost, "/api/bookmaker", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
			assert.Zero(t, trig.calls)
		})
	}
}

func TestFeedHandler_RefreshCoalesces(t *testing.T) {
	trig := &fakeTrigger{}
	h := NewFeedHandler(&fakeFeed{}, trig, testCatalog(), discard)

	first := httptest.NewRecorder()
	h.Refresh(first, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	second := httptest.NewRecorder()
	h.Refresh(second, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, true, decode(t, first)["queued"])
	assert.Equal(t, false, decode(t, second)["queued"])
}

func TestFeedHandler_ListBookmakersAndFetches(t *testing.T) {
	feed := &fakeFeed{
		state:   service.FeedState{Bookmaker: "Bet365"},
		fetches: []domain.FeedEvent{{FetchID: "f-1", Bookmaker: "Bet365"}},
	}
	h := NewFeedHandler(feed, &fakeTrigger{}, testCatalog(), discard)

	rec := httptest.NewRecorder()
	h.ListBookmakers(rec, httptest.NewRequest(http.MethodGet, "/api/bookmakers", nil))
	body := decode(t, rec)
	assert.Equal(t, "Bet365", body["selected"])
	assert.Len(t, body["bookmakers"], 2)

	rec = httptest.NewRecorder()
	h.RecentFetches(rec, httptest.NewRequest(http.MethodGet, "/api/fetches/recent?limit=5000", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, feed.asked)
	assert.Len(t, decode(t, rec)["fetches"], 1)
}

type fakeViews struct {
	got valuebet.ViewFilters
	err error
}

func (v *fakeViews) Build(_ context.Context, f valuebet.ViewFilters) (service.ViewResponse, error) {
	v.got = f
	return service.ViewResponse{Status: service.FeedStatus{Bookmaker: "Unibet"}}, v.err
}

func TestViewHandler_GetView(t *testing.T) {
	views := &fakeViews{}
	h := NewViewHandler(views, discard)

	rec := httptest.NewRecorder()
	h.GetView(rec, httptest.NewRequest(http.MethodGet,
		"/api/view?sport=Football&league=Premier+League&show_all=1&sort=desc&max_odds=3&bookmarks_only=yes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, valuebet.ViewFilters{
		Sport:         "Football",
		League:        "Premier League",
		ShowAll:       true,
		Sort:          valuebet.SortDesc,
		MaxOdds:       valuebet.Cap3,
		BookmarksOnly: true,
	}, views.got)
}

func TestViewHandler_GetViewBadParams(t *testing.T) {
	for _, query := range []string{"sort=sideways", "max_odds=7"} {
		t.Run(query, func(t *testing.T) {
			h := NewViewHandler(&fakeViews{}, discard)
			rec := httptest.NewRecorder()
			h.GetView(rec, httptest.NewRequest(http.MethodGet, "/api/view?"+query, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	h := NewViewHandler(&fakeViews{err: errors.New("store down")}, discard)
	rec := httptest.NewRecorder()
	h.GetView(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeBookmarks struct {
	recs      []domain.BookmarkRecord
	toggled   []string
	toggleErr error
	exportErr error
	listedFor string
}

func (b *fakeBookmarks) List(context.Context) ([]domain.BookmarkRecord, error) { return b.recs, nil }

func (b *fakeBookmarks) ListFor(_ context.Context, bm string) ([]domain.BookmarkRecord, error) {
	b.listedFor = bm
	return b.recs[:0], nil
}

func (b *fakeBookmarks) Toggle(_ context.Context, q domain.Quote, bm string) (bool, error) {
	if b.toggleErr != nil {
		return false, b.toggleErr
	}
	b.toggled = append(b.toggled, q.ID.String()+"@"+bm)
	return true, nil
}

func (b *fakeBookmarks) Export(context.Context) (string, error) {
	return "bookmarks/2024.jsonl", b.exportErr
}

type fakeFinder map[string]domain.Quote

func (f fakeFinder) FindQuote(_ context.Context, id string) (domain.Quote, string, error) {
	q, ok := f[id]
	if !ok {
		return domain.Quote{}, "", domain.ErrNotFound
	}
	return q, "Unibet", nil
}

// toggleRequest routes through a mux so PathValue is populated.
func toggleRequest(h *BookmarkHandler, id string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bookmarks/{id}/toggle", h.Toggle)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookmarks/"+id+"/toggle", nil))
	return rec
}

func TestBookmarkHandler_Toggle(t *testing.T) {
	q := domain.Quote{RawQuote: domain.RawQuote{ID: "q1"}}
	bookmarks := &fakeBookmarks{}
	h := NewBookmarkHandler(bookmarks, fakeFinder{"q1": q}, discard)

	rec := toggleRequest(h, "q1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["starred"])
	assert.Equal(t, []string{"q1@Unibet"}, bookmarks.toggled)

	assert.Equal(t, http.StatusNotFound, toggleRequest(h, "missing").Code)

	failing := NewBookmarkHandler(&fakeBookmarks{toggleErr: errors.New("db down")}, fakeFinder{"q1": q}, discard)
	rec = toggleRequest(failing, "q1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "bookmark was not changed", decode(t, rec)["error"])
}

func TestBookmarkHandler_ListAndExport(t *testing.T) {
	bookmarks := &fakeBookmarks{recs: []domain.BookmarkRecord{{Bookmaker: "Unibet"}}}
	h := NewBookmarkHandler(bookmarks, fakeFinder{}, discard)

	rec := httptest.NewRecorder()
	h.ListBookmarks(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil))
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	rec = httptest.NewRecorder()
	h.ListBookmarks(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks?bookmaker=Bet365", nil))
	assert.Equal(t, "Bet365", bookmarks.listedFor)
	assert.EqualValues(t, 0, decode(t, rec)["total"])

	rec = httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodPost, "/api/bookmarks/export", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "bookmarks/2024.jsonl", decode(t, rec)["key"])

	bookmarks.exportErr = service.ErrExportUnavailable
	rec = httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodPost, "/api/bookmarks/export", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Check{"redis": ok}, discard).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Check{"redis": ok, "postgres": down}, discard).
		HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"redis": "up", "postgres": "down"}, body["backends"])
}

func TestStatusHandler(t *testing.T) {
	feed := &fakeFeed{state: service.FeedState{Bookmaker: "Unibet", Generation: 4, LastError: "timeout"}}
	h := NewStatusHandler("server", testStart, feed)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	body := decode(t, rec)
	assert.Equal(t, "server", body["mode"])
	assert.EqualValues(t, 4, body["generation"])
	status := body["feed"].(map[string]any)
	assert.Equal(t, "Unibet", status["bookmaker"])
	assert.Equal(t, "timeout", status["lastError"])
}
