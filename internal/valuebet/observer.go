package valuebet

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/evbets/evboard/internal/domain"
)

// Stage identifies the pipeline step that produced an Outcome.
type Stage string

const (
	StageHorizon   Stage = "horizon"
	StageRelevance Stage = "relevance"
	StageEnrich    Stage = "enrich"
	StageLeague    Stage = "league"
	StageEV        Stage = "ev"
	StageMaxOdds   Stage = "max_odds"
)

// Reason is a machine-readable rejection or warning code.
type Reason string

const (
	ReasonInvalidDate          Reason = "invalid_date"
	ReasonTooFar               Reason = "too_far_in_future"
	ReasonInvalidSport         Reason = "invalid_sport"
	ReasonLeagueNotWhitelisted Reason = "league_not_whitelisted"
	ReasonLeagueNotRelevant    Reason = "league_not_relevant"
	ReasonUnknownSport         Reason = "unknown_sport"
	ReasonMissingFairOdds      Reason = "missing_fair_odds"
	ReasonMissingOfferedOdds   Reason = "missing_offered_odds"
	ReasonLeagueMismatch       Reason = "league_mismatch"
	ReasonBelowThreshold       Reason = "below_threshold"
	ReasonOddsNotFinite        Reason = "odds_not_finite"
	ReasonOddsTooHigh          Reason = "odds_too_high"
)

// QuoteRef carries the identifying fields of a quote for telemetry.
type QuoteRef struct {
	ID      string `json:"id"`
	EventID string `json:"event_id,omitempty"`
	Sport   string `json:"sport"`
	League  string `json:"league"`
	Home    string `json:"home"`
	Away    string `json:"away"`
	Date    string `json:"date"`
	BetSide string `json:"bet_side"`
}

// RefOf extracts the identifying fields of q.
func RefOf(q domain.RawQuote) QuoteRef {
	return QuoteRef{
		ID:      q.ID.String(),
		EventID: q.EventID.String(),
		Sport:   q.Event.Sport,
		League:  q.Event.League,
		Home:    q.Event.Home,
		Away:    q.Event.Away,
		Date:    q.Event.Date,
		BetSide: q.BetSide,
	}
}

// Outcome is one observation. Rejected is false for warnings that do not
// remove the quote (missing odds during enrichment).
type Outcome struct {
	Stage    Stage
	Reason   Reason
	Rejected bool
	Ref      QuoteRef
}

// Observer receives filter outcomes. Implementations must not block.
type Observer interface {
	Observe(o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

// Observe calls f(o).
func (f ObserverFunc) Observe(o Outcome) { f(o) }

// NopObserver discards everything.
type NopObserver struct{}

// Observe implements Observer.
func (NopObserver) Observe(Outcome) {}

type multiObserver []Observer

func (m multiObserver) Observe(o Outcome) {
	for _, obs := range m {
		obs.Observe(o)
	}
}

// Multi fans an outcome out to every non-nil observer.
func Multi(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func orNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}

// Tally counts outcomes per stage and reason. It is safe for concurrent use.
type Tally struct {
	mu     sync.Mutex
	counts map[Stage]map[Reason]int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[Stage]map[Reason]int)}
}

// Observe implements Observer.
func (t *Tally) Observe(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byReason, ok := t.counts[o.Stage]
	if !ok {
		byReason = make(map[Reason]int)
		t.counts[o.Stage] = byReason
	}
	byReason[o.Reason]++
}

// Count returns how often reason was observed at stage.
func (t *Tally) Count(stage Stage, reason Reason) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[stage][reason]
}

// StageTotal returns the number of outcomes observed at stage.
func (t *Tally) StageTotal(stage Stage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.counts[stage] {
		n += c
	}
	return n
}

// TallyRow is one (stage, reason, count) line of a Tally snapshot.
type TallyRow struct {
	Stage  Stage  `json:"stage"`
	Reason Reason `json:"reason"`
	Count  int    `json:"count"`
}

// Rows returns the counts ordered by stage then reason.
func (t *Tally) Rows() []TallyRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	var rows []TallyRow
	for stage, byReason := range t.counts {
		for reason, n := range byReason {
			rows = append(rows, TallyRow{Stage: stage, Reason: reason, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Stage != rows[j].Stage {
			return rows[i].Stage < rows[j].Stage
		}
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}

// Reset clears all counts.
func (t *Tally) Reset() {
	t.mu.Lock()
	t.counts = make(map[Stage]map[Reason]int)
	t.mu.Unlock()
}

// LogObserver writes every outcome to a structured logger.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver logs outcomes at the given level.
func NewLogObserver(logger *slog.Logger, level slog.Level) *LogObserver {
	return &LogObserver{logger: logger.With(slog.String("component", "valuebet")), level: level}
}

// Observe implements Observer.
func (l *LogObserver) Observe(o Outcome) {
	msg := "quote filtered"
	if !o.Rejected {
		msg = "quote warning"
	}
	l.logger.LogAttrs(context.Background(), l.level, msg,
		slog.String("stage", string(o.Stage)),
		slog.String("reason", string(o.Reason)),
		slog.String("quote_id", o.Ref.ID),
		slog.String("sport", o.Ref.Sport),
		slog.String("league", o.Ref.League),
		slog.String("home", o.Ref.Home),
		slog.String("away", o.Ref.Away),
		slog.String("date", o.Ref.Date),
	)
}

func reject(obs Observer, stage Stage, reason Reason, q domain.RawQuote) {
	obs.Observe(Outcome{Stage: stage, Reason: reason, Rejected: true, Ref: RefOf(q)})
}

func warn(obs Observer, stage Stage, reason Reason, q domain.RawQuote) {
	obs.Observe(Outcome{Stage: stage, Reason: reason, Ref: RefOf(q)})
}
