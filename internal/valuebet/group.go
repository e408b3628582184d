package valuebet

import "github.com/evbets/evboard/internal/domain"

// GroupKey identifies a real-world event. It is exact string concatenation
// of home, away and the raw start-time string; entries whose names or date
// formatting differ do not merge. All grouping goes through this function.
func GroupKey(e domain.RawEvent) string {
	return e.Home + "-" + e.Away + "-" + e.Date
}

// EventGroup is every shown quote for one event key, in input order.
type EventGroup struct {
	Key    string
	Quotes []domain.Quote
}

// BestEV returns the highest ExpectedValue in the group.
func (g EventGroup) BestEV() float64 {
	best := 0.0
	for i, q := range g.Quotes {
		if i == 0 || q.ExpectedValue > best {
			best = q.ExpectedValue
		}
	}
	return best
}

// StableKey is the render identity of the group, based on the first quote's
// feed event id.
func (g EventGroup) StableKey() string {
	if len(g.Quotes) == 0 {
		return g.Key
	}
	first := g.Quotes[0]
	id := first.EventID.String()
	if id == "" {
		id = "noid"
	}
	return id + "-" + first.Event.Date + "-" + first.Event.Home + "-" + first.Event.Away
}

// GroupByEvent partitions quotes by GroupKey. Groups appear in the order
// their first quote appears; it never re-sorts.
func GroupByEvent(quotes []domain.Quote) []EventGroup {
	index := make(map[string]int)
	var groups []EventGroup
	for _, q := range quotes {
		key := GroupKey(q.Event)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, EventGroup{Key: key})
		}
		groups[i].Quotes = append(groups[i].Quotes, q)
	}
	return groups
}
