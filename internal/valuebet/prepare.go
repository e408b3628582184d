package valuebet

import (
	"time"

	"github.com/evbets/evboard/internal/domain"
)

// Preparer turns a raw feed batch into the cached, relevant, enriched set.
type Preparer struct {
	Policy   RelevancePolicy
	Horizon  time.Duration
	Observer Observer
}

// Prepare runs horizon, relevance and enrichment over batch in that order.
// Input order is preserved.
func (p Preparer) Prepare(batch []domain.RawQuote, now time.Time) ([]domain.Quote, domain.FilterSummary) {
	obs := orNop(p.Observer)
	horizon := p.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	summary := domain.FilterSummary{Total: len(batch)}
	out := make([]domain.Quote, 0, len(batch))
	for _, q := range batch {
		if reason := CheckHorizon(q, now, horizon); reason != "" {
			if reason == ReasonInvalidDate {
				summary.InvalidDate++
			} else {
				summary.TooFar++
			}
			reject(obs, StageHorizon, reason, q)
			continue
		}
		if reason := p.Policy.Check(q); reason != "" {
			summary.SportLeagueFiltered++
			reject(obs, StageRelevance, reason, q)
			continue
		}
		out = append(out, Enrich(q, obs))
	}
	summary.Remaining = len(out)
	return out, summary
}
