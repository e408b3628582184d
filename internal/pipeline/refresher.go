package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// FeedRefresher is the part of the feed service the refresh loop drives.
type FeedRefresher interface {
	Refresh(ctx context.Context) (domain.FeedSnapshot, error)
	Bookmaker() string
}

// SnapshotHook runs after every committed snapshot.
type SnapshotHook func(ctx context.Context, snap domain.FeedSnapshot)

// ErrorHook runs after a refresh fails with anything other than
// cancellation or supersession.
type ErrorHook func(ctx context.Context, bookmaker string, err error)

// Refresher refreshes the feed on a ticker and on demand. Manual triggers
// coalesce: while one is pending, further triggers are dropped.
type Refresher struct {
	feed       FeedRefresher
	trigger    chan struct{}
	onSnapshot []SnapshotHook
	onError    []ErrorHook
	logger     *slog.Logger
}

// NewRefresher creates a Refresher for feed.
func NewRefresher(feed FeedRefresher, logger *slog.Logger) *Refresher {
	return &Refresher{
		feed:    feed,
		trigger: make(chan struct{}, 1),
		logger:  logger.With(slog.String("component", "refresher")),
	}
}

// OnSnapshot registers a hook for committed snapshots. Hooks must be
// registered before RunLoop starts.
func (r *Refresher) OnSnapshot(h SnapshotHook) { r.onSnapshot = append(r.onSnapshot, h) }

// OnError registers a hook for failed refreshes.
func (r *Refresher) OnError(h ErrorHook) { r.onError = append(r.onError, h) }

// Trigger requests a refresh as soon as the loop is free. It reports false
// when a request was already pending.
func (r *Refresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs one refresh and runs the hooks. Superseded and cancelled
// refreshes are not errors.
func (r *Refresher) RunOnce(ctx context.Context) error {
	snap, err := r.feed.Refresh(ctx)
	switch {
	case err == nil:
		for _, h := range r.onSnapshot {
			h(ctx, snap)
		}
		return nil
	case errors.Is(err, domain.ErrSuperseded), errors.Is(err, context.Canceled):
		r.logger.DebugContext(ctx, "refresh dropped", slog.String("reason", err.Error()))
		return nil
	default:
		bookmaker := r.feed.Bookmaker()
		for _, h := range r.onError {
			h(ctx, bookmaker, err)
		}
		return err
	}
}

// RunLoop refreshes immediately, then on every tick of interval and on every
// Trigger, until ctx is cancelled. Failures are logged by the feed service
// and never stop the loop.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	_ = r.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-r.trigger:
			ticker.Reset(interval)
		}
		_ = r.RunOnce(ctx)
	}
}
