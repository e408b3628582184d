package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/evbets/evboard/internal/domain"
)

// setupRedis starts a throwaway Redis container and returns a connected
// Client. The container is terminated on test cleanup.
func setupRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	c, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedis(t *testing.T) {
	c := setupRedis(t)

	t.Run("quote cache", func(t *testing.T) {
		qc := NewQuoteCache(c, time.Minute)
		ctx := context.Background()

		_, err := qc.GetSnapshot(ctx, "bet365")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		snap := domain.FeedSnapshot{
			FetchID:   "f1",
			Bookmaker: "bet365",
			Shape:     domain.ShapeRootArray,
			Quotes:    []domain.Quote{{RawQuote: domain.RawQuote{ID: "q1"}, ExpectedValue: 105.5}},
			Summary:   domain.FilterSummary{Total: 3, TooFar: 2, Remaining: 1},
			FetchedAt: time.Unix(1_700_000_000, 0).UTC(),
		}
		require.NoError(t, qc.SetSnapshot(ctx, snap))

		got, err := qc.GetSnapshot(ctx, "bet365")
		require.NoError(t, err)
		assert.Equal(t, snap.FetchID, got.FetchID)
		assert.Equal(t, snap.Summary, got.Summary)
		require.Len(t, got.Quotes, 1)
		assert.Equal(t, 105.5, got.Quotes[0].ExpectedValue)

		ttl, err := c.Underlying().TTL(ctx, snapshotKey("bet365")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, qc.Invalidate(ctx, "bet365"))
		_, err = qc.GetSnapshot(ctx, "bet365")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("bookmark store", func(t *testing.T) {
		s := NewBookmarkStore(c)
		ctx := context.Background()
		t0 := time.Unix(1_700_000_000, 0).UTC()
		rec := func(id string, at time.Time) domain.BookmarkRecord {
			return domain.BookmarkRecord{
				Quote:     domain.Quote{RawQuote: domain.RawQuote{ID: domain.FlexID(id)}},
				Bookmaker: "Unibet",
				CreatedAt: at,
			}
		}

		require.NoError(t, s.Add(ctx, rec("b", t0.Add(time.Second)), "b"))
		require.NoError(t, s.Add(ctx, rec("a", t0), "a"))
		assert.ErrorIs(t, s.Add(ctx, rec("a", t0), "a"), domain.ErrAlreadyExists)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].Key())

		require.NoError(t, s.Delete(ctx, "a"))
		assert.ErrorIs(t, s.Delete(ctx, "a"), domain.ErrNotFound)
		_, err = s.Get(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("lock", func(t *testing.T) {
		lm := NewLockManager(c)
		ctx := context.Background()

		unlock, err := lm.Acquire(ctx, "feed:bet365", 5*time.Second)
		require.NoError(t, err)

		_, err = lm.Acquire(ctx, "feed:bet365", 5*time.Second)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		unlock()
		unlock()

		unlock2, err := lm.Acquire(ctx, "feed:bet365", 5*time.Second)
		require.NoError(t, err)
		unlock2()
	})

	t.Run("rate limiter", func(t *testing.T) {
		rl := NewRateLimiter(c)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "api:1.2.3.4", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "request %d", i)
		}
		ok, err := rl.Allow(ctx, "api:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = rl.Allow(ctx, "api:5.6.7.8", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		wctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		rl.WaitLimit = 0
		assert.Error(t, rl.Wait(wctx, "never"))
	})

	t.Run("signal bus", func(t *testing.T) {
		sb := NewSignalBus(c)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := sb.Subscribe(ctx, "ch:*")
		require.NoError(t, err)
		require.NoError(t, sb.Publish(ctx, domain.ChannelFeed, []byte(`{"bookmaker":"bet365"}`)))

		select {
		case msg := <-sub:
			assert.JSONEq(t, `{"bookmaker":"bet365"}`, string(msg))
		case <-time.After(5 * time.Second):
			t.Fatal("no message received")
		}

		for i := 1; i <= 3; i++ {
			payload, _ := json.Marshal(map[string]int{"n": i})
			require.NoError(t, sb.StreamAppend(ctx, domain.StreamFeedSummary, payload))
		}

		all, err := sb.StreamRead(ctx, domain.StreamFeedSummary, "0", 10)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.JSONEq(t, `{"n":1}`, string(all[0].Payload))

		after, err := sb.StreamRead(ctx, domain.StreamFeedSummary, all[2].ID, 10)
		require.NoError(t, err)
		assert.Empty(t, after)

		recent, err := sb.StreamRecent(ctx, domain.StreamFeedSummary, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.JSONEq(t, `{"n":3}`, string(recent[0].Payload))

		cancel()
		select {
		case _, ok := <-sub:
			assert.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("subscription not closed")
		}
	})
}
