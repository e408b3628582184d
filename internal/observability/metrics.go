// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evbets/evboard/internal/valuebet"
)

const defaultNamespace = "evboard"

// Fetch results recorded by RecordFetch.
const (
	FetchOK           = "ok"
	FetchError        = "error"
	FetchSuperseded   = "superseded"
	FetchUnrecognized = "unrecognized"
	FetchCoalesced    = "coalesced"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Feed metrics
	FeedFetches      *prometheus.CounterVec
	FeedDuration     *prometheus.HistogramVec
	SnapshotQuotes   *prometheus.GaugeVec
	LastSuccessfulAt *prometheus.GaugeVec

	// Filter metrics
	QuotesFiltered *prometheus.CounterVec

	// Bookmark and alert metrics
	BookmarkToggles *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers every metric with reg. A nil reg uses a fresh
// registry, which keeps tests independent of the global one.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetches_total",
			Help:      "Feed fetches by bookmaker and result",
		}, []string{"bookmaker", "result"}),
		FeedDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Feed fetch latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"bookmaker"}),
		SnapshotQuotes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "snapshot_quotes",
			Help:      "Quotes in the current prepared snapshot",
		}, []string{"bookmaker"}),
		LastSuccessfulAt: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_successful_fetch_timestamp",
			Help:      "Unix timestamp of the last successful fetch",
		}, []string{"bookmaker"}),

		QuotesFiltered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "quote_outcomes_total",
			Help:      "Quotes rejected or flagged by pipeline stage and reason",
		}, []string{"stage", "reason", "kind"}),

		BookmarkToggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookmarks",
			Name:      "toggles_total",
			Help:      "Bookmark toggles by resulting state",
		}, []string{"action"}),
		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Value alerts by delivery status",
		}, []string{"status"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		gatherer: reg,
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordFetch records one fetch attempt.
func (m *Metrics) RecordFetch(bookmaker, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.FeedFetches.WithLabelValues(bookmaker, result).Inc()
	m.FeedDuration.WithLabelValues(bookmaker).Observe(d.Seconds())
}

// RecordSnapshot updates the snapshot gauges after a successful fetch.
func (m *Metrics) RecordSnapshot(bookmaker string, quotes int, at time.Time) {
	if m == nil {
		return
	}
	m.SnapshotQuotes.WithLabelValues(bookmaker).Set(float64(quotes))
	m.LastSuccessfulAt.WithLabelValues(bookmaker).Set(float64(at.Unix()))
}

// RecordToggle counts a bookmark toggle.
func (m *Metrics) RecordToggle(starred bool) {
	if m == nil {
		return
	}
	action := "removed"
	if starred {
		action = "added"
	}
	m.BookmarkToggles.WithLabelValues(action).Inc()
}

// RecordAlert counts an alert delivery.
func (m *Metrics) RecordAlert(err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.AlertsSent.WithLabelValues(status).Inc()
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Observer returns a valuebet.Observer that counts outcomes.
func (m *Metrics) Observer() valuebet.Observer {
	if m == nil {
		return valuebet.NopObserver{}
	}
	return RejectionObserver{vec: m.QuotesFiltered}
}

// RejectionObserver counts pipeline outcomes by stage, reason and kind.
type RejectionObserver struct {
	vec *prometheus.CounterVec
}

// Observe implements valuebet.Observer.
func (r RejectionObserver) Observe(o valuebet.Outcome) {
	kind := "warning"
	if o.Rejected {
		kind = "rejected"
	}
	r.vec.WithLabelValues(string(o.Stage), string(o.Reason), kind).Inc()
}
