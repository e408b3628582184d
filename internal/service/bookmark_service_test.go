package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachemem "github.com/evbets/evboard/internal/cache/memory"
	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/observability"
	storemem "github.com/evbets/evboard/internal/store/memory"
)

// flakyStore fails writes on demand.
type flakyStore struct {
	*storemem.BookmarkStore
	failWrites error
}

func (s *flakyStore) Add(ctx context.Context, rec domain.BookmarkRecord, key string) error {
	if s.failWrites != nil {
		return s.failWrites
	}
	return s.BookmarkStore.Add(ctx, rec, key)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.failWrites != nil {
		return s.failWrites
	}
	return s.BookmarkStore.Delete(ctx, key)
}

type fakeExporter struct {
	prefix string
	recs   []domain.BookmarkRecord
}

func (e *fakeExporter) ExportBookmarks(_ context.Context, prefix string, recs []domain.BookmarkRecord) (string, error) {
	e.prefix = prefix
	e.recs = recs
	return prefix + "/2024-05-01/bookmarks-1714564800.jsonl", nil
}

func quote(id string) domain.Quote {
	return domain.Quote{
		RawQuote: domain.RawQuote{
			ID:    domain.FlexID(id),
			Event: domain.RawEvent{Sport: "Football", League: "Premier League", Home: "Arsenal", Away: "Chelsea", Date: "2024-05-01T14:00:00Z"},
		},
		ExpectedValue: 106,
	}
}

func TestBookmarkService_Toggle(t *testing.T) {
	store := storemem.NewBookmarkStore()
	audit := storemem.NewAuditStore()
	bus := cachemem.NewSignalBus()
	metrics := observability.NewMetrics("test", nil)
	svc := NewBookmarkService(store, discardLogger,
		WithBookmarkAudit(audit),
		WithBookmarkBus(bus),
		WithBookmarkMetrics(metrics),
	)
	svc.now = func() time.Time { return testNow }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, domain.ChannelBookmarks)
	require.NoError(t, err)

	starred, err := svc.Toggle(ctx, quote("q1"), "bet365")
	require.NoError(t, err)
	assert.True(t, starred)

	rec, err := store.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "bet365", rec.Bookmaker)
	assert.Equal(t, testNow, rec.CreatedAt)
	assert.Equal(t, 106.0, rec.ExpectedValue)

	select {
	case msg := <-events:
		var ev domain.BookmarkEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, domain.BookmarkEvent{QuoteID: "q1", Bookmaker: "bet365", Starred: true, At: testNow}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no bookmark event")
	}

	starred, err = svc.Toggle(ctx, quote("q1"), "bet365")
	require.NoError(t, err)
	assert.False(t, starred)
	_, err = store.Get(ctx, "q1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bookmark.removed", entries[0].Event)
	assert.Equal(t, "bookmark.added", entries[1].Event)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BookmarkToggles.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BookmarkToggles.WithLabelValues("removed")))
}

func TestBookmarkService_ToggleFailureLeavesStateUnchanged(t *testing.T) {
	store := &flakyStore{BookmarkStore: storemem.NewBookmarkStore()}
	audit := storemem.NewAuditStore()
	svc := NewBookmarkService(store, discardLogger, WithBookmarkAudit(audit))
	ctx := context.Background()

	_, err := svc.Toggle(ctx, quote("q1"), "bet365")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	store.failWrites = boom

	_, err = svc.Toggle(ctx, quote("q1"), "bet365")
	require.ErrorIs(t, err, boom)
	starred, err := svc.Starred(ctx)
	require.NoError(t, err)
	assert.True(t, starred["q1"])

	_, err = svc.Toggle(ctx, quote("q2"), "bet365")
	require.ErrorIs(t, err, boom)
	starred, err = svc.Starred(ctx)
	require.NoError(t, err)
	assert.False(t, starred["q2"])

	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed toggles are not audited")
}

func TestBookmarkService_ToggleRequiresID(t *testing.T) {
	svc := NewBookmarkService(storemem.NewBookmarkStore(), discardLogger)
	_, err := svc.Toggle(context.Background(), domain.Quote{}, "bet365")
	assert.Error(t, err)
}

func TestBookmarkService_ListFor(t *testing.T) {
	svc := NewBookmarkService(storemem.NewBookmarkStore(), discardLogger)
	ctx := context.Background()

	for id, bm := range map[string]string{"a": "bet365", "b": "Unibet", "c": "bet365"} {
		_, err := svc.Toggle(ctx, quote(id), bm)
		require.NoError(t, err)
	}

	recs, err := svc.ListFor(ctx, "bet365")
	require.NoError(t, err)
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.Key())
	}
	assert.ElementsMatch(t, []string{"a", "c"}, keys)

	recs, err = svc.ListFor(ctx, "Betano")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBookmarkService_Export(t *testing.T) {
	ctx := context.Background()

	svc := NewBookmarkService(storemem.NewBookmarkStore(), discardLogger)
	_, err := svc.Export(ctx)
	assert.ErrorIs(t, err, ErrExportUnavailable)

	exp := &fakeExporter{}
	svc = NewBookmarkService(storemem.NewBookmarkStore(), discardLogger, WithBookmarkExport(exp, "exports"))
	_, err = svc.Toggle(ctx, quote("q1"), "bet365")
	require.NoError(t, err)

	key, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "exports/2024-05-01/bookmarks-1714564800.jsonl", key)
	assert.Equal(t, "exports", exp.prefix)
	require.Len(t, exp.recs, 1)
	assert.Equal(t, "q1", exp.recs[0].Key())
}
