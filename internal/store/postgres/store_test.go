package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/domain"
)

func bookmark(id, bookmaker string, created time.Time) domain.BookmarkRecord {
	hdp := -0.5
	return domain.BookmarkRecord{
		Quote: domain.Quote{
			RawQuote: domain.RawQuote{
				ID:      domain.FlexID(id),
				EventID: "77",
				Event: domain.RawEvent{
					Sport:  "Football",
					League: "Spain - LaLiga",
					Home:   "Betis",
					Away:   "Sevilla",
					Date:   "2024-05-01T19:00:00Z",
				},
				Market:        map[string]any{"name": "Spread", "home": 1.95, "hdp": -0.5},
				BookmakerOdds: map[string]any{"home": 2.1, "href": "https://book.example/" + id},
				BetSide:       "home",
			},
			ExpectedValue: 107.69,
			Handicap:      &hdp,
		},
		Bookmaker: bookmaker,
		CreatedAt: created,
	}
}

func TestBookmarkStore_Lifecycle(t *testing.T) {
	client := setupTestDB(t)
	store := NewBookmarkStore(client.Pool())
	ctx := context.Background()
	t0 := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Add(ctx, bookmark("b", "Unibet", t0.Add(time.Minute)), "b"))
	require.NoError(t, store.Add(ctx, bookmark("a", "bet365", t0), "a"))

	err = store.Add(ctx, bookmark("a", "bet365", t0), "a")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "bet365", got.Bookmaker)
	assert.Equal(t, 107.69, got.ExpectedValue)
	require.NotNil(t, got.Handicap)
	assert.Equal(t, -0.5, *got.Handicap)
	assert.Equal(t, "https://book.example/a", got.Link())
	assert.True(t, t0.Equal(got.CreatedAt))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Key())
	assert.Equal(t, "b", list[1].Key())

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), domain.ErrNotFound)

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAuditStore_LogAndList(t *testing.T) {
	client := setupTestDB(t)
	store := NewAuditStore(client.Pool())
	ctx := context.Background()

	require.NoError(t, store.Log(ctx, "bookmark.added", map[string]any{"quote_id": "a"}))
	require.NoError(t, store.Log(ctx, "bookmark.removed", map[string]any{"quote_id": "a"}))
	require.NoError(t, store.Log(ctx, "bookmaker.selected", map[string]any{"bookmaker": "Unibet"}))

	all, err := store.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bookmaker.selected", all[0].Event)
	assert.Equal(t, "Unibet", all[0].Detail["bookmaker"])

	page, err := store.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bookmark.removed", page[0].Event)

	future := time.Now().Add(time.Hour)
	none, err := store.List(ctx, domain.ListOpts{Since: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	client := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, client.RunMigrations(ctx))

	var n int
	require.NoError(t, client.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestAuditListQuery(t *testing.T) {
	since := time.Unix(0, 0)
	q, args := auditListQuery(domain.ListOpts{Since: &since, Limit: 10})
	assert.Equal(t, `SELECT id, event, detail, created_at FROM audit_log WHERE created_at >= $1 ORDER BY created_at DESC, id DESC LIMIT $2`, q)
	assert.Equal(t, []any{since, 10}, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5433/ev?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 5433, Database: "ev", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: " postgres://x ", Host: "ignored"}))
}
