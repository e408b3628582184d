// Package valuebet is the quote pipeline: numeric normalization, the horizon
// and relevance filters, EV enrichment, the presentation filter chain and
// event grouping. Every function here is pure over its inputs; rejections are
// reported through an Observer instead of being logged directly.
package valuebet

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/evbets/evboard/internal/domain"
)

// notAvailable is the feed's placeholder for a missing price.
const notAvailable = "N/A"

// NormalizeNumber converts a loosely typed odds or handicap value into a
// finite float64. ok is false for nil, the "N/A" sentinel in any letter case,
// blank or non-numeric strings, and NaN or infinite values.
func NormalizeNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" || strings.EqualFold(s, notAvailable) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FairOdds returns the fair-market odds for the quote's selected side.
func FairOdds(q domain.RawQuote) (float64, bool) {
	return NormalizeNumber(q.Market[q.BetSide])
}

// OfferedOdds returns the bookmaker's odds for the quote's selected side.
func OfferedOdds(q domain.RawQuote) (float64, bool) {
	return NormalizeNumber(q.BookmakerOdds[q.BetSide])
}

// ResolveHandicap returns the market line, falling back to the bookmaker's
// own line when the market has none.
func ResolveHandicap(q domain.RawQuote) *float64 {
	if h, ok := NormalizeNumber(q.Market["hdp"]); ok {
		return &h
	}
	if h, ok := NormalizeNumber(q.BookmakerOdds["hdp"]); ok {
		return &h
	}
	return nil
}
