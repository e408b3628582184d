package valuebet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckHorizon(t *testing.T) {
	horizon := 3 * 24 * time.Hour
	tests := []struct {
		name string
		date string
		want Reason
	}{
		{name: "inside window", date: "2024-01-03T23:00:00Z"},
		{name: "exactly at edge", date: "2024-01-04T00:00:00Z"},
		{name: "past the edge", date: "2024-01-04T01:00:00Z", want: ReasonTooFar},
		{name: "already started", date: "2023-12-31T20:00:00Z"},
		{name: "fractional seconds", date: "2024-01-02T10:00:00.000Z"},
		{name: "zone offset", date: "2024-01-02T10:00:00+02:00"},
		{name: "no zone", date: "2024-01-02T10:00:00"},
		{name: "space separated", date: "2024-01-02 10:00:00"},
		{name: "date only", date: "2024-01-02"},
		{name: "garbage", date: "not-a-date", want: ReasonInvalidDate},
		{name: "empty", date: "", want: ReasonInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := raw("1", "Football", "Premier League", tt.date, 2.0, 2.2)
			assert.Equal(t, tt.want, CheckHorizon(q, testNow, horizon))
			assert.Equal(t, tt.want == "", WithinHorizon(q, testNow, horizon))
		})
	}
}

func TestRelevancePolicy_FootballAllowList(t *testing.T) {
	q := raw("1", "Football", "Premier League", hoursFromNow(3), 2.0, 2.2)

	p := testPolicy()
	p.FootballLeagues = []string{"Premier League"}
	assert.True(t, p.IsRelevant(q))

	p.FootballLeagues = []string{"La Liga"}
	assert.False(t, p.IsRelevant(q))
	assert.Equal(t, ReasonLeagueNotWhitelisted, p.Check(q))
}

func TestRelevancePolicy_Check(t *testing.T) {
	p := testPolicy()
	tests := []struct {
		name   string
		sport  string
		league string
		want   Reason
	}{
		{name: "football substring match", sport: "Football", league: "England - Premier League", want: ""},
		{name: "football not listed", sport: "Football", league: "Serie B", want: ReasonLeagueNotWhitelisted},
		{name: "cricket never relevant", sport: "Cricket", league: "Premier League", want: ReasonInvalidSport},
		{name: "sport match is case sensitive", sport: "football", league: "Premier League", want: ReasonInvalidSport},
		{name: "tennis tier marker", sport: "Tennis", league: "ATP Halle", want: ""},
		{name: "tennis minor tour", sport: "Tennis", league: "ITF M15 Antalya", want: ReasonLeagueNotRelevant},
		{name: "basketball configured league", sport: "Basketball", league: "USA - NBA Summer League", want: ""},
		{name: "basketball other league", sport: "Basketball", league: "NBA", want: ReasonLeagueNotRelevant},
		{name: "esports pass through", sport: "Esports", league: "anything", want: ""},
		{name: "baseball pass through", sport: "Baseball", league: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := raw("1", tt.sport, tt.league, hoursFromNow(3), 2.0, 2.2)
			assert.Equal(t, tt.want, p.Check(q))
		})
	}
}

func TestRelevancePolicy_WhitelistedWithoutRule(t *testing.T) {
	p := testPolicy()
	p.PassThrough = []string{"Esports"}

	q := raw("1", "Baseball", "MLB", hoursFromNow(3), 2.0, 2.2)
	assert.Equal(t, ReasonUnknownSport, p.Check(q))
}

func TestRelevancePolicy_EmptyBasketballLeague(t *testing.T) {
	p := testPolicy()
	p.BasketballLeague = ""

	q := raw("1", "Basketball", "NBA Summer League", hoursFromNow(3), 2.0, 2.2)
	assert.Equal(t, ReasonLeagueNotRelevant, p.Check(q))
}
