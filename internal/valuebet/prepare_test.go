package valuebet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evbets/evboard/internal/domain"
)

func TestPrepare_EndToEnd(t *testing.T) {
	batch := []domain.RawQuote{
		raw("cricket", "Cricket", "IPL", hoursFromNow(3), 2.0, 2.2),
		raw("good", "Football", "Premier League", hoursFromNow(3), 2.0, 2.2),
		raw("far", "Football", "Premier League", hoursFromNow(240), 2.0, 1.9),
	}
	tally := NewTally()
	p := Preparer{Policy: testPolicy(), Observer: tally}

	prepared, summary := p.Prepare(batch, testNow)

	assert.Equal(t, domain.FilterSummary{
		Total:               3,
		InvalidDate:         0,
		TooFar:              1,
		SportLeagueFiltered: 1,
		Remaining:           1,
	}, summary)
	assert.Equal(t, 1, tally.Count(StageHorizon, ReasonTooFar))
	assert.Equal(t, 1, tally.Count(StageRelevance, ReasonInvalidSport))

	groups := GroupByEvent(Present(prepared, ViewFilters{}, tally))
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Quotes, 1)
	assert.Equal(t, "good", groups[0].Quotes[0].ID.String())
	assert.InDelta(t, 110, groups[0].BestEV(), 1e-9)
}

func TestPrepare_HorizonRunsBeforeRelevance(t *testing.T) {
	batch := []domain.RawQuote{
		raw("1", "Cricket", "IPL", "not-a-date", 2.0, 2.2),
	}
	tally := NewTally()

	_, summary := Preparer{Policy: testPolicy(), Observer: tally}.Prepare(batch, testNow)

	assert.Equal(t, 1, summary.InvalidDate)
	assert.Zero(t, summary.SportLeagueFiltered)
	assert.Zero(t, tally.StageTotal(StageRelevance))
}

func TestPrepare_KeepsZeroEVQuotes(t *testing.T) {
	batch := []domain.RawQuote{
		raw("1", "Football", "La Liga", hoursFromNow(1), "N/A", 2.2),
	}

	prepared, summary := Preparer{Policy: testPolicy()}.Prepare(batch, testNow)

	require.Len(t, prepared, 1)
	assert.Zero(t, prepared[0].ExpectedValue)
	assert.Equal(t, 1, summary.Remaining)
}

func TestTally_Rows(t *testing.T) {
	tally := NewTally()
	obs := Multi(tally, nil, NopObserver{})
	q := raw("1", "Football", "La Liga", hoursFromNow(1), 2.0, 2.2)

	reject(obs, StageEV, ReasonBelowThreshold, q)
	reject(obs, StageEV, ReasonBelowThreshold, q)
	reject(obs, StageHorizon, ReasonTooFar, q)

	assert.Equal(t, []TallyRow{
		{Stage: StageEV, Reason: ReasonBelowThreshold, Count: 2},
		{Stage: StageHorizon, Reason: ReasonTooFar, Count: 1},
	}, tally.Rows())

	tally.Reset()
	assert.Empty(t, tally.Rows())
}
