package domain

import "time"

// Signal bus channels and streams.
const (
	ChannelFeed       = "ch:feed"
	ChannelBookmarks  = "ch:bookmarks"
	ChannelAlerts     = "ch:alerts"
	StreamFeedSummary = "feed.summaries"
)

// FeedEvent is published on ChannelFeed after every fetch attempt that is
// not superseded.
type FeedEvent struct {
	FetchID   string        `json:"fetch_id"`
	Bookmaker string        `json:"bookmaker"`
	Shape     FeedShape     `json:"shape,omitempty"`
	Summary   FilterSummary `json:"summary"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
}

// BookmarkEvent is published on ChannelBookmarks after a confirmed toggle.
type BookmarkEvent struct {
	QuoteID   string    `json:"quote_id"`
	Bookmaker string    `json:"bookmaker"`
	Starred   bool      `json:"starred"`
	At        time.Time `json:"at"`
}

// AlertEvent is published on ChannelAlerts when a quote crosses the alert
// threshold.
type AlertEvent struct {
	QuoteID       string    `json:"quote_id"`
	Bookmaker     string    `json:"bookmaker"`
	Title         string    `json:"title"`
	ExpectedValue float64   `json:"expected_value"`
	At            time.Time `json:"at"`
}
