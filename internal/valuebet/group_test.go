package valuebet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/domain"
)

func TestGroupByEvent_SameEventMerges(t *testing.T) {
	a := enriched("a", "Premier League", "2024-01-01T15:00:00Z", 105)
	b := enriched("b", "Premier League", "2024-01-01T15:00:00Z", 112)
	b.BetSide = "away"

	groups := GroupByEvent([]domain.Quote{a, b})

	require.Len(t, groups, 1)
	assert.Equal(t, "Arsenal-Chelsea-2024-01-01T15:00:00Z", groups[0].Key)
	assert.Equal(t, []string{"a", "b"}, ids(groups[0].Quotes))
	assert.InDelta(t, 112, groups[0].BestEV(), 1e-9)
}

func TestGroupByEvent_DateStringIsExact(t *testing.T) {
	a := enriched("a", "Premier League", "2024-01-01T15:00:00Z", 105)
	b := enriched("b", "Premier League", "2024-01-01T15:00:00.000Z", 105)

	groups := GroupByEvent([]domain.Quote{a, b})

	assert.Len(t, groups, 2)
}

func TestGroupByEvent_KeepsFirstSeenOrder(t *testing.T) {
	quotes := []domain.Quote{
		withTeams(enriched("1", "Premier League", hoursFromNow(1), 110), "Leeds", "Hull"),
		withTeams(enriched("2", "Premier League", hoursFromNow(2), 110), "Arsenal", "Chelsea"),
		withTeams(enriched("3", "Premier League", hoursFromNow(1), 108), "Leeds", "Hull"),
	}

	groups := GroupByEvent(quotes)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"1", "3"}, ids(groups[0].Quotes))
	assert.Equal(t, []string{"2"}, ids(groups[1].Quotes))
}

func TestEventGroup_StableKey(t *testing.T) {
	q := enriched("a", "Premier League", "2024-01-01T15:00:00Z", 105)
	g := EventGroup{Key: GroupKey(q.Event), Quotes: []domain.Quote{q}}
	assert.Equal(t, "ev-a-2024-01-01T15:00:00Z-Arsenal-Chelsea", g.StableKey())

	q.EventID = ""
	g.Quotes[0] = q
	assert.Equal(t, "noid-2024-01-01T15:00:00Z-Arsenal-Chelsea", g.StableKey())
}

func TestBySport(t *testing.T) {
	tennis := enriched("t", "ATP Halle", hoursFromNow(1), 110)
	tennis.Event.Sport = "Tennis"
	unknown := enriched("u", "", hoursFromNow(1), 110)
	unknown.Event.Sport = ""
	quotes := []domain.Quote{
		enriched("f1", "Premier League", hoursFromNow(1), 110),
		tennis,
		enriched("f2", "La Liga", hoursFromNow(2), 110),
		unknown,
	}

	buckets := BySport(quotes)

	require.Len(t, buckets, 3)
	assert.Equal(t, "Football", buckets[0].Sport)
	assert.Equal(t, []string{"f1", "f2"}, ids(buckets[0].Quotes))
	assert.Equal(t, map[string]int{"Football": 2, "Tennis": 1, UnknownSport: 1}, SportCounts(buckets))
	assert.Equal(t, []string{"t"}, ids(QuotesFor(buckets, "Tennis")))
	assert.Nil(t, QuotesFor(buckets, "Esports"))
}

func TestLeaguesWithQuotes(t *testing.T) {
	quotes := []domain.Quote{
		enriched("1", "Spain - La Liga", hoursFromNow(1), 110),
		enriched("2", "Spain - La Liga 2", hoursFromNow(1), 110),
	}
	allow := []string{"Premier League", "La Liga", "Bundesliga"}

	assert.Equal(t, []string{AllLeagues, "La Liga"}, LeaguesWithQuotes(allow, quotes))
	assert.Equal(t, []string{AllLeagues}, LeaguesWithQuotes(allow, nil))
}
