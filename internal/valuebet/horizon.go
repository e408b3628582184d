package valuebet

import (
	"strings"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// DefaultHorizon is how far ahead upcoming events are shown.
const DefaultHorizon = 72 * time.Hour

// startTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseStartTime parses an event start-time string.
func ParseStartTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CheckHorizon returns the rejection reason for q, or "" when q starts no
// later than now+horizon. Events in the past are accepted.
func CheckHorizon(q domain.RawQuote, now time.Time, horizon time.Duration) Reason {
	start, ok := ParseStartTime(q.Event.Date)
	if !ok {
		return ReasonInvalidDate
	}
	if start.After(now.Add(horizon)) {
		return ReasonTooFar
	}
	return ""
}

// WithinHorizon reports whether q passes the horizon filter.
func WithinHorizon(q domain.RawQuote, now time.Time, horizon time.Duration) bool {
	return CheckHorizon(q, now, horizon) == ""
}
