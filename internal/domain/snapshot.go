package domain

import "time"

// FeedShape records which envelope the feed response used.
type FeedShape string

const (
	ShapeRootArray    FeedShape = "root_array"
	ShapeData         FeedShape = "data"
	ShapeValueBets    FeedShape = "value_bets"
	ShapeUnrecognized FeedShape = "unrecognized"
)

// Recognized reports whether the response envelope was one of the known
// shapes.
func (s FeedShape) Recognized() bool {
	switch s {
	case ShapeRootArray, ShapeData, ShapeValueBets:
		return true
	}
	return false
}

// FilterSummary counts what the preparation stage did with one feed batch.
type FilterSummary struct {
	Total               int `json:"total"`
	InvalidDate         int `json:"invalidDate"`
	TooFar              int `json:"tooFar"`
	SportLeagueFiltered int `json:"sportLeagueFiltered"`
	Remaining           int `json:"remaining"`
}

// FeedSnapshot is the prepared (horizon-filtered, relevant, enriched) quote
// set for one bookmaker as of one successful fetch.
type FeedSnapshot struct {
	FetchID   string        `json:"fetchId"`
	Bookmaker string        `json:"bookmaker"`
	Shape     FeedShape     `json:"shape"`
	Quotes    []Quote       `json:"quotes"`
	Summary   FilterSummary `json:"summary"`
	FetchedAt time.Time     `json:"fetchedAt"`
}
