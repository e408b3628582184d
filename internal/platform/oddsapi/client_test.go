package oddsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/domain"
)

func TestFetchValueBets(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/value-bets", r.URL.Path)
		gotQuery = map[string]string{
			"apiKey":              r.URL.Query().Get("apiKey"),
			"bookmaker":           r.URL.Query().Get("bookmaker"),
			"includeEventDetails": r.URL.Query().Get("includeEventDetails"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[` + quoteJSON + `]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "k3y", time.Second)
	resp, err := c.FetchValueBets(context.Background(), "bet365")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"apiKey": "k3y", "bookmaker": "bet365", "includeEventDetails": "true"}, gotQuery)
	assert.Equal(t, domain.ShapeData, resp.Shape)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, "bet365", resp.Bookmaker)
	assert.NotEmpty(t, resp.Body)
	assert.False(t, resp.FetchedAt.IsZero())
}

func TestFetchValueBets_UnrecognizedIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "k", time.Second).FetchValueBets(context.Background(), "bet365")
	require.NoError(t, err)
	assert.Equal(t, domain.ShapeUnrecognized, resp.Shape)
	assert.Empty(t, resp.Items)
	assert.Equal(t, []string{"message"}, resp.RawKeys)
}

func TestFetchValueBets_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnauthorized, want: domain.ErrUnauthorized},
		{status: http.StatusTooManyRequests, want: domain.ErrRateLimited},
		{status: http.StatusNotFound, want: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", time.Second).FetchValueBets(context.Background(), "bet365")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, "k", time.Second).FetchValueBets(context.Background(), "bet365")
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestFetchValueBets_CancelRedactsKey(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewClient(srv.URL, "super-secret", 5*time.Second).FetchValueBets(ctx, "bet365")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotContains(t, err.Error(), "super-secret")
}

type denyLimiter struct{ calls int }

func (d *denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.calls++
	return false, nil
}

func (d *denyLimiter) Wait(context.Context, string) error { return nil }

func TestFetchValueBets_RateLimited(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	defer srv.Close()

	rl := &denyLimiter{}
	c := NewClient(srv.URL, "k", time.Second, WithRateLimiter(rl, 10))
	_, err := c.FetchValueBets(context.Background(), "bet365")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, rl.calls)
	assert.False(t, hit)
}
