package valuebet

import (
	"time"

	"github.com/evbets/evboard/internal/domain"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testPolicy() RelevancePolicy {
	return RelevancePolicy{
		Sports:           []string{"Football", "Tennis", "Basketball", "Esports", "Baseball"},
		FootballLeagues:  []string{"Premier League", "La Liga"},
		TennisMarkers:    []string{"Wimbledon", "ATP", "US Open"},
		BasketballLeague: "NBA Summer League",
		PassThrough:      []string{"Esports", "Baseball"},
	}
}

// raw builds a feed quote backing the "home" side.
func raw(id, sport, league, date string, fair, offered any) domain.RawQuote {
	return domain.RawQuote{
		ID:      domain.FlexID(id),
		EventID: domain.FlexID("ev-" + id),
		Event: domain.RawEvent{
			Sport:  sport,
			League: league,
			Home:   "Arsenal",
			Away:   "Chelsea",
			Date:   date,
		},
		Market:        map[string]any{"name": "ML", "home": fair},
		BookmakerOdds: map[string]any{"home": offered, "href": "https://book.example/" + id},
		BetSide:       "home",
	}
}

// enriched builds a prepared football quote with a fixed EV.
func enriched(id, league, date string, ev float64) domain.Quote {
	q := raw(id, "Football", league, date, 2.0, 2.0*ev/100)
	return domain.Quote{RawQuote: q, ExpectedValue: ev}
}

func withTeams(q domain.Quote, home, away string) domain.Quote {
	q.Event.Home = home
	q.Event.Away = away
	return q
}

func ids(quotes []domain.Quote) []string {
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, q.ID.String())
	}
	return out
}

func hoursFromNow(h int) string {
	return testNow.Add(time.Duration(h) * time.Hour).Format(time.RFC3339)
}
