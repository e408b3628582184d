package valuebet

import (
	"strings"

	"github.com/evbets/evboard/internal/domain"
)

// UnknownSport buckets quotes whose event carries no sport.
const UnknownSport = "Unknown"

// SportBucket holds the quotes of one sport in input order.
type SportBucket struct {
	Sport  string
	Quotes []domain.Quote
}

// BySport partitions quotes by sport in first-seen order.
func BySport(quotes []domain.Quote) []SportBucket {
	index := make(map[string]int)
	var buckets []SportBucket
	for _, q := range quotes {
		sport := q.Event.Sport
		if sport == "" {
			sport = UnknownSport
		}
		i, ok := index[sport]
		if !ok {
			i = len(buckets)
			index[sport] = i
			buckets = append(buckets, SportBucket{Sport: sport})
		}
		buckets[i].Quotes = append(buckets[i].Quotes, q)
	}
	return buckets
}

// SportCounts returns the number of quotes per sport.
func SportCounts(buckets []SportBucket) map[string]int {
	out := make(map[string]int, len(buckets))
	for _, b := range buckets {
		out[b.Sport] = len(b.Quotes)
	}
	return out
}

// QuotesFor returns the bucket for sport, or nil.
func QuotesFor(buckets []SportBucket, sport string) []domain.Quote {
	for _, b := range buckets {
		if b.Sport == sport {
			return b.Quotes
		}
	}
	return nil
}

// LeaguesWithQuotes returns AllLeagues followed by the allow-list leagues
// that at least one football quote's league name contains, in allow-list
// order.
func LeaguesWithQuotes(allowList []string, quotes []domain.Quote) []string {
	out := []string{AllLeagues}
	for _, name := range allowList {
		if name == "" {
			continue
		}
		for _, q := range quotes {
			if q.Event.Sport == SportFootball && strings.Contains(q.Event.League, name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
