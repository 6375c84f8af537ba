// Package quote resolves watchlist prices from market data history
package quote

import "github.com/bobmcallan/ghostwatch/internal/models"

// MaxLookback bounds how many repeated-price entries are skipped when
// searching backward for the last real movement.
const MaxLookback = 5

// Movement is the resolved price of a symbol and, when a usable previous
// price exists, its change against that price.
type Movement struct {
	Price     float64
	Date      string
	Change    *float64
	ChangePct *float64
}

// ResolveMovement finds the most recent meaningful price in a history ordered
// oldest to newest. Trailing entries that repeat the previous price (weekend
// filler) are skipped, up to MaxLookback steps. ok is false for an empty history.
func ResolveMovement(history []models.MarketDataPoint) (Movement, bool) {
	if len(history) == 0 {
		return Movement{}, false
	}

	idx := len(history) - 1
	for steps := 0; steps < MaxLookback && idx > 0; steps++ {
		cur, prev := history[idx].MarketPrice, history[idx-1].MarketPrice
		if cur != prev || cur == 0 || prev == 0 {
			break
		}
		idx--
	}

	m := Movement{Price: history[idx].MarketPrice, Date: history[idx].Date}
	if idx == 0 {
		return m, true
	}

	prev := history[idx-1].MarketPrice
	if prev <= 0 {
		return m, true
	}
	// Still flat after the bound: no movement to report.
	if prev == m.Price {
		return m, true
	}

	change := m.Price - prev
	pct := change / prev * 100
	m.Change = &change
	m.ChangePct = &pct
	return m, true
}

// ApplyMarketData returns item enriched from a market data response. Price
// and date are replaced only when the history resolves, and the change only
// when a positive predecessor exists; upstream values are kept otherwise.
// Currency and asset class are filled from the profile when the item lacks them.
func ApplyMarketData(item models.WatchlistItem, detail *models.MarketDataDetail) models.WatchlistItem {
	if detail == nil {
		return item
	}

	if m, ok := ResolveMovement(detail.MarketData); ok {
		price := m.Price
		item.MarketPrice = &price
		item.MarketDate = m.Date
		if m.Change != nil {
			item.MarketChange = m.Change
			item.MarketChangePercentage = m.ChangePct
		}
	}

	if item.Currency == "" {
		item.Currency = detail.AssetProfile.Currency
	}
	if item.AssetClass == "" {
		item.AssetClass = detail.AssetProfile.AssetClass
	}
	if item.Name == "" {
		item.Name = detail.AssetProfile.Name
	}
	return item
}
