package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/notify"
	"github.com/evbets/evboard/internal/observability"
)

// AlertNotifier delivers one alert.
type AlertNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

type fetchFailure struct {
	bookmaker string
	err       error
}

// AlertScanner notifies quotes whose EV reaches a threshold, once per quote
// within the dedup window, and reports failed refreshes. Snapshots are
// handed over with Submit and processed by Run so slow senders never hold
// up the refresh loop.
type AlertScanner struct {
	notifier AlertNotifier
	bus      domain.SignalBus
	metrics  *observability.Metrics
	minEV    float64
	dedupTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	snaps    chan domain.FeedSnapshot
	failures chan fetchFailure

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewAlertScanner creates an AlertScanner. notifier and bus may be nil.
func NewAlertScanner(notifier AlertNotifier, bus domain.SignalBus, metrics *observability.Metrics, minEV float64, dedupTTL time.Duration, logger *slog.Logger) *AlertScanner {
	return &AlertScanner{
		notifier: notifier,
		bus:      bus,
		metrics:  metrics,
		minEV:    minEV,
		dedupTTL: dedupTTL,
		logger:   logger.With(slog.String("component", "alert_scanner")),
		now:      time.Now,
		snaps:    make(chan domain.FeedSnapshot, 1),
		failures: make(chan fetchFailure, 1),
		seen:     make(map[string]time.Time),
	}
}

// Submit queues snap for scanning. Only the newest pending snapshot is kept.
func (s *AlertScanner) Submit(_ context.Context, snap domain.FeedSnapshot) {
	for {
		select {
		case s.snaps <- snap:
			return
		default:
		}
		select {
		case <-s.snaps:
		default:
		}
	}
}

// SubmitFailure queues a failed refresh for reporting.
func (s *AlertScanner) SubmitFailure(_ context.Context, bookmaker string, err error) {
	select {
	case s.failures <- fetchFailure{bookmaker: bookmaker, err: err}:
	default:
	}
}

// Run processes submitted work until ctx is cancelled.
func (s *AlertScanner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-s.snaps:
			s.Scan(ctx, snap)
		case f := <-s.failures:
			s.ReportFailure(ctx, f.bookmaker, f.err)
		}
	}
}

// Scan alerts every quote of snap at or above the threshold that has not
// been alerted within the dedup window and returns how many were alerted.
func (s *AlertScanner) Scan(ctx context.Context, snap domain.FeedSnapshot) int {
	now := s.now()
	s.prune(now)

	sent := 0
	for _, q := range snap.Quotes {
		if q.ExpectedValue < s.minEV {
			continue
		}
		if !s.claim(snap.Bookmaker+":"+q.ID.String(), now) {
			continue
		}
		title, message := notify.QuoteAlert(q, snap.Bookmaker)
		s.publish(ctx, domain.AlertEvent{
			QuoteID:       q.ID.String(),
			Bookmaker:     snap.Bookmaker,
			Title:         title,
			ExpectedValue: q.ExpectedValue,
			At:            now,
		})
		s.deliver(ctx, notify.EventHighEV, title, message)
		sent++
	}
	if sent > 0 {
		s.logger.InfoContext(ctx, "high EV alerts sent",
			slog.String("bookmaker", snap.Bookmaker),
			slog.Int("count", sent),
		)
	}
	return sent
}

// ReportFailure alerts a failed refresh, at most once per bookmaker within
// the dedup window.
func (s *AlertScanner) ReportFailure(ctx context.Context, bookmaker string, err error) {
	now := s.now()
	s.prune(now)
	if !s.claim("fail:"+bookmaker, now) {
		return
	}
	title, message := notify.FetchFailedAlert(bookmaker, err)
	s.deliver(ctx, notify.EventFetchFailed, title, message)
}

// claim records key as alerted and reports whether it was new.
func (s *AlertScanner) claim(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = now
	return true
}

func (s *AlertScanner) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) >= s.dedupTTL {
			delete(s.seen, k)
		}
	}
}

func (s *AlertScanner) deliver(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, event, title, message)
	s.metrics.RecordAlert(err)
	if err != nil {
		s.logger.WarnContext(ctx, "alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AlertScanner) publish(ctx context.Context, ev domain.AlertEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelAlerts, payload); err != nil {
		s.logger.WarnContext(ctx, "publish alert failed", slog.String("error", err.Error()))
	}
}
