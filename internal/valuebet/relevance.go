package valuebet

import (
	"strings"

	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/domain"
)

// Sports with league rules of their own.
const (
	SportFootball   = "Football"
	SportTennis     = "Tennis"
	SportBasketball = "Basketball"
)

// RelevancePolicy decides which sports and competitions are worth showing.
// League checks use substring containment: feed competition names carry
// prefixes and suffixes that vary by source.
type RelevancePolicy struct {
	Sports           []string
	FootballLeagues  []string
	TennisMarkers    []string
	BasketballLeague string
	PassThrough      []string
}

// PolicyFromCatalog builds the policy from catalog data.
func PolicyFromCatalog(c *catalog.Catalog) RelevancePolicy {
	return RelevancePolicy{
		Sports:           append([]string(nil), c.Sports...),
		FootballLeagues:  c.LeagueNames(),
		TennisMarkers:    append([]string(nil), c.TennisMarkers...),
		BasketballLeague: c.BasketballLeague,
		PassThrough:      append([]string(nil), c.PassThrough...),
	}
}

// Check returns "" when q is relevant, otherwise the rejection reason. Rules
// are evaluated in order and the first applicable one decides.
func (p RelevancePolicy) Check(q domain.RawQuote) Reason {
	sport := q.Event.Sport
	league := q.Event.League

	if !contains(p.Sports, sport) {
		return ReasonInvalidSport
	}
	switch sport {
	case SportFootball:
		if !containsAny(league, p.FootballLeagues) {
			return ReasonLeagueNotWhitelisted
		}
		return ""
	case SportTennis:
		if !containsAny(league, p.TennisMarkers) {
			return ReasonLeagueNotRelevant
		}
		return ""
	case SportBasketball:
		if p.BasketballLeague == "" || !strings.Contains(league, p.BasketballLeague) {
			return ReasonLeagueNotRelevant
		}
		return ""
	}
	if contains(p.PassThrough, sport) {
		return ""
	}
	return ReasonUnknownSport
}

// IsRelevant reports whether q passes the relevance filter.
func (p RelevancePolicy) IsRelevant(q domain.RawQuote) bool {
	return p.Check(q) == ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains at least one non-empty needle.
func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
