package valuebet

import (
	"math"

	"github.com/evbets/evboard/internal/domain"
)

// EVThreshold is the EV percentage a quote must exceed to be shown when the
// show-all override is off.
const EVThreshold = 104.0

// ComputeEV returns offered/fair*100. Absent odds are passed as 0. Any zero,
// negative or non-finite input yields exactly 0.
func ComputeEV(fair, offered float64) float64 {
	if !positive(fair) || !positive(offered) {
		return 0
	}
	ev := offered / fair * 100
	if math.IsInf(ev, 0) || math.IsNaN(ev) {
		return 0
	}
	return ev
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

// MinOddsFor returns the lowest offered odds that reach EVThreshold against
// the given fair odds.
func MinOddsFor(fair float64) (float64, bool) {
	if !positive(fair) {
		return 0, false
	}
	return fair * EVThreshold / 100, true
}

// Enrich attaches ExpectedValue and Handicap to q. Missing odds are reported
// to obs as warnings; the quote is still returned with EV 0.
func Enrich(q domain.RawQuote, obs Observer) domain.Quote {
	obs = orNop(obs)
	fair, fairOK := FairOdds(q)
	offered, offeredOK := OfferedOdds(q)
	if !offeredOK || offered == 0 {
		warn(obs, StageEnrich, ReasonMissingOfferedOdds, q)
	}
	if !fairOK || fair == 0 {
		warn(obs, StageEnrich, ReasonMissingFairOdds, q)
	}
	return domain.Quote{
		RawQuote:      q,
		ExpectedValue: ComputeEV(fair, offered),
		Handicap:      ResolveHandicap(q),
	}
}
