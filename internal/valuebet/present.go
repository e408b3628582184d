package valuebet

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// AllLeagues is the league selection that disables league filtering.
const AllLeagues = "all"

// SortDirection orders quotes by event start time.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts "asc", "desc" or "" (asc).
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	}
	return "", fmt.Errorf("valuebet: unknown sort direction %q", s)
}

// OddsCap is the max-odds preset.
type OddsCap string

const (
	CapNone OddsCap = "none"
	Cap2    OddsCap = "2"
	Cap3    OddsCap = "3"
)

// ParseOddsCap accepts "none", "2", "3" and "" (none).
func ParseOddsCap(s string) (OddsCap, error) {
	switch strings.TrimSpace(s) {
	case "", "none":
		return CapNone, nil
	case "2", "2.0":
		return Cap2, nil
	case "3", "3.0":
		return Cap3, nil
	}
	return "", fmt.Errorf("valuebet: unknown max odds cap %q", s)
}

// Limit returns the cap value, or false for CapNone.
func (c OddsCap) Limit() (float64, bool) {
	switch c {
	case Cap2:
		return 2.0, true
	case Cap3:
		return 3.0, true
	}
	return 0, false
}

// ViewFilters are the viewer-controlled presentation parameters.
type ViewFilters struct {
	Sport         string        `json:"sport"`
	League        string        `json:"league"`
	ShowAll       bool          `json:"show_all"`
	Sort          SortDirection `json:"sort"`
	MaxOdds       OddsCap       `json:"max_odds"`
	Bookmaker     string        `json:"bookmaker"`
	BookmarksOnly bool          `json:"bookmarks_only"`
}

// leagueSelected reports whether a specific league narrows the set.
func (f ViewFilters) leagueSelected() bool {
	return f.League != "" && !strings.EqualFold(f.League, AllLeagues)
}

// Present applies league, EV threshold and max-odds filters in that order and
// then sorts by start time. The input slice is not modified.
func Present(quotes []domain.Quote, f ViewFilters, obs Observer) []domain.Quote {
	obs = orNop(obs)
	limit, capped := f.MaxOdds.Limit()

	out := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if f.leagueSelected() && q.Event.Sport == SportFootball && !strings.Contains(q.Event.League, f.League) {
			reject(obs, StageLeague, ReasonLeagueMismatch, q.RawQuote)
			continue
		}
		if !f.ShowAll && !(q.ExpectedValue > EVThreshold) {
			reject(obs, StageEV, ReasonBelowThreshold, q.RawQuote)
			continue
		}
		if capped {
			offered, ok := OfferedOdds(q.RawQuote)
			if !ok {
				reject(obs, StageMaxOdds, ReasonOddsNotFinite, q.RawQuote)
				continue
			}
			if offered > limit {
				reject(obs, StageMaxOdds, ReasonOddsTooHigh, q.RawQuote)
				continue
			}
		}
		out = append(out, q)
	}
	SortByStart(out, f.Sort)
	return out
}

// SortByStart stably orders quotes by parsed start time. Quotes whose start
// time does not parse always come after every parseable one, in either
// direction, and keep their relative order.
func SortByStart(quotes []domain.Quote, dir SortDirection) {
	type keyed struct {
		q     domain.Quote
		start time.Time
		ok    bool
	}
	ks := make([]keyed, len(quotes))
	for i, q := range quotes {
		t, ok := ParseStartTime(q.Event.Date)
		ks[i] = keyed{q: q, start: t, ok: ok}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return 0
		case !a.ok:
			return 1
		case !b.ok:
			return -1
		}
		c := a.start.Compare(b.start)
		if dir == SortDesc {
			return -c
		}
		return c
	})
	for i := range ks {
		quotes[i] = ks[i].q
	}
}
