package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexID is an identifier the feed may encode as either a JSON string or a
// JSON number. It always decodes to its string form.
type FlexID string

// UnmarshalJSON accepts strings, numbers, and null.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the identifier as text.
func (f FlexID) String() string { return string(f) }

// RawEvent is the event block attached to a feed quote when expanded event
// details are requested.
type RawEvent struct {
	ID     FlexID `json:"id,omitempty"`
	Sport  string `json:"sport"`
	League string `json:"league"`
	Home   string `json:"home"`
	Away   string `json:"away"`
	Date   string `json:"date"`
}

// RawQuote is one value-bet record as delivered by the feed. Market and
// BookmakerOdds stay loosely typed: odds values may arrive as numbers,
// numeric strings, null or the "N/A" sentinel.
type RawQuote struct {
	ID            FlexID         `json:"id"`
	EventID       FlexID         `json:"eventId,omitempty"`
	Event         RawEvent       `json:"event"`
	Market        map[string]any `json:"market,omitempty"`
	BookmakerOdds map[string]any `json:"bookmakerOdds,omitempty"`
	BetSide       string         `json:"betSide"`
}

// MarketName returns the market's display name, if any.
func (q RawQuote) MarketName() string {
	s, _ := q.Market["name"].(string)
	return s
}

// Link returns the bookmaker deep link for the quote, if any.
func (q RawQuote) Link() string {
	s, _ := q.BookmakerOdds["href"].(string)
	return s
}

// Quote is a RawQuote after normalization and enrichment. ExpectedValue is
// always finite and non-negative; Handicap is nil when neither the market nor
// the bookmaker carries a numeric line.
type Quote struct {
	RawQuote
	ExpectedValue float64  `json:"expectedValue"`
	Handicap      *float64 `json:"handicap,omitempty"`
}

// HandicapText renders the resolved handicap line for display.
func (q Quote) HandicapText() string {
	if q.Handicap == nil {
		return ""
	}
	return strconv.FormatFloat(*q.Handicap, 'f', -1, 64)
}
