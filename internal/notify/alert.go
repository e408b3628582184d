package notify

import (
	"fmt"
	"strings"

	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/valuebet"
)

// QuoteAlert renders the title and body of a high-EV alert.
func QuoteAlert(q domain.Quote, bookmaker string) (title, message string) {
	title = fmt.Sprintf("%s%% EV: %s vs %s", valuebet.FormatPercent(q.ExpectedValue), q.Event.Home, q.Event.Away)

	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s\n", q.Event.Sport, q.Event.League)
	fmt.Fprintf(&b, "Start: %s\n", q.Event.Date)
	market := q.MarketName()
	if line := q.HandicapText(); line != "" {
		market += " " + line
	}
	fmt.Fprintf(&b, "Bet: %s %s @ %s\n", strings.TrimSpace(market), q.BetSide, bookmaker)
	if offered, ok := valuebet.OfferedOdds(q.RawQuote); ok {
		fmt.Fprintf(&b, "Odds: %.2f", offered)
		if fair, ok := valuebet.FairOdds(q.RawQuote); ok {
			fmt.Fprintf(&b, " (fair %.2f", fair)
			if minOdds, ok := valuebet.MinOddsFor(fair); ok {
				fmt.Fprintf(&b, ", min %.2f", minOdds)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	if link := q.Link(); link != "" {
		b.WriteString(link)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// FetchFailedAlert renders an alert for a failed feed refresh.
func FetchFailedAlert(bookmaker string, err error) (title, message string) {
	return "Feed refresh failed: " + bookmaker, err.Error()
}
