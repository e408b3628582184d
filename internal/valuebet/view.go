package valuebet

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evbets/evboard/internal/domain"
)

// soonWindow is how close to kickoff a group is flagged as starting soon.
const soonWindow = 30 * time.Minute

// Tone classifies a group's countdown.
type Tone string

const (
	ToneDefault Tone = "default"
	ToneSoon    Tone = "soon"
	ToneLive    Tone = "live"
)

// CountdownTone returns live once the event has started and soon within
// thirty minutes of the start.
func CountdownTone(start time.Time, ok bool, now time.Time) Tone {
	if !ok {
		return ToneDefault
	}
	left := start.Sub(now)
	switch {
	case left <= 0:
		return ToneLive
	case left <= soonWindow:
		return ToneSoon
	}
	return ToneDefault
}

// FormatCountdown renders the time until start using its two largest units.
func FormatCountdown(start time.Time, ok bool, now time.Time) string {
	if !ok {
		return "-"
	}
	left := start.Sub(now)
	if left <= 0 {
		return "live"
	}
	day := int(left / (24 * time.Hour))
	left -= time.Duration(day) * 24 * time.Hour
	hour := int(left / time.Hour)
	left -= time.Duration(hour) * time.Hour
	minute := int(left / time.Minute)
	left -= time.Duration(minute) * time.Minute
	second := int(left / time.Second)

	switch {
	case day > 0:
		return fmt.Sprintf("%dd %dh", day, hour)
	case hour > 0:
		return fmt.Sprintf("%dh %dm", hour, minute)
	case minute > 0:
		return fmt.Sprintf("%dm %ds", minute, second)
	}
	return fmt.Sprintf("%ds", second)
}

// QuoteView is one rendered quote row.
type QuoteView struct {
	domain.Quote
	Fair           *float64 `json:"fair,omitempty"`
	Offered        *float64 `json:"offered,omitempty"`
	MinOdds        *float64 `json:"minOdds,omitempty"`
	MinOddsDisplay string   `json:"minOddsDisplay,omitempty"`
	EVDisplay      string   `json:"evDisplay"`
	Good           bool     `json:"good"`
	Starred        bool     `json:"starred"`
	MarketName     string   `json:"marketName,omitempty"`
	Line           string   `json:"line,omitempty"`
	Link           string   `json:"link,omitempty"`
}

// GroupView is one rendered event card.
type GroupView struct {
	Key           string      `json:"key"`
	StableKey     string      `json:"stableKey"`
	Title         string      `json:"title"`
	League        string      `json:"league"`
	StartTime     string      `json:"startTime"`
	Countdown     string      `json:"countdown"`
	Tone          Tone        `json:"tone"`
	BestEV        float64     `json:"bestEV"`
	BestEVDisplay string      `json:"bestEVDisplay"`
	Quotes        []QuoteView `json:"quotes"`
}

// View is the complete view model for one set of viewer parameters.
type View struct {
	Filters     ViewFilters    `json:"filters"`
	Leagues     []string       `json:"leagues,omitempty"`
	SportCounts map[string]int `json:"sportCounts"`
	Groups      []GroupView    `json:"groups"`
	TotalGroups int            `json:"totalGroups"`
}

// ViewInput collects what BuildView needs.
type ViewInput struct {
	Quotes    []domain.Quote
	Filters   ViewFilters
	Starred   map[string]bool
	AllowList []string
	Now       time.Time
	Observer  Observer
}

// BuildView selects the sport bucket, runs the presentation chain, groups by
// event and decorates the result for display.
func BuildView(in ViewInput) View {
	f := in.Filters
	if f.Sport == "" {
		f.Sport = SportFootball
	}
	if f.Sort == "" {
		f.Sort = SortAsc
	}
	if f.MaxOdds == "" {
		f.MaxOdds = CapNone
	}

	buckets := BySport(in.Quotes)
	active := QuotesFor(buckets, f.Sport)

	v := View{
		Filters:     f,
		SportCounts: SportCounts(buckets),
		Groups:      []GroupView{},
	}
	if f.Sport == SportFootball {
		v.Leagues = LeaguesWithQuotes(in.AllowList, active)
	}

	for _, g := range GroupByEvent(Present(active, f, in.Observer)) {
		v.Groups = append(v.Groups, groupView(g, in.Starred, in.Now))
	}
	v.TotalGroups = len(v.Groups)
	return v
}

func groupView(g EventGroup, starred map[string]bool, now time.Time) GroupView {
	first := g.Quotes[0]
	start, ok := ParseStartTime(first.Event.Date)
	best := g.BestEV()
	gv := GroupView{
		Key:           g.Key,
		StableKey:     g.StableKey(),
		Title:         first.Event.Home + " vs " + first.Event.Away,
		League:        first.Event.League,
		StartTime:     first.Event.Date,
		Countdown:     FormatCountdown(start, ok, now),
		Tone:          CountdownTone(start, ok, now),
		BestEV:        best,
		BestEVDisplay: FormatPercent(best),
		Quotes:        make([]QuoteView, 0, len(g.Quotes)),
	}
	for _, q := range g.Quotes {
		gv.Quotes = append(gv.Quotes, quoteView(q, starred[q.ID.String()]))
	}
	return gv
}

func quoteView(q domain.Quote, starred bool) QuoteView {
	qv := QuoteView{
		Quote:      q,
		EVDisplay:  FormatPercent(q.ExpectedValue),
		Good:       q.ExpectedValue >= EVThreshold,
		Starred:    starred,
		MarketName: q.MarketName(),
		Line:       q.HandicapText(),
		Link:       q.Link(),
	}
	if fair, ok := FairOdds(q.RawQuote); ok {
		qv.Fair = &fair
		if m, ok := MinOddsFor(fair); ok {
			rounded := round2(m)
			qv.MinOdds = &rounded
			qv.MinOddsDisplay = decimal.NewFromFloat(m).StringFixed(2)
		}
	}
	if offered, ok := OfferedOdds(q.RawQuote); ok {
		qv.Offered = &offered
	}
	return qv
}

// FormatPercent renders an EV value with two decimals.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
