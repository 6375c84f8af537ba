package portfolio

import "github.com/bobmcallan/ghostwatch/internal/models"

// AccountHealthFor reports how complete an account's slice of snap is.
// An account is healthy when both its performance and holdings were fetched
// and every active holding carries a positive market price.
func AccountHealthFor(snap *models.Snapshot, accountID string, holdingsExpected bool) models.AccountHealth {
	var h models.AccountHealth
	if snap == nil {
		return h
	}

	_, h.PerformanceAvailable = snap.AccountPerformance[accountID]
	holdings, ok := snap.HoldingsByAccount[accountID]
	h.HoldingsAvailable = ok

	for _, holding := range holdings {
		if !holding.IsActive() {
			continue
		}
		h.ActiveHoldings++
		if holding.MarketPrice <= 0 {
			h.UnpricedHoldings++
		}
	}

	h.Healthy = h.PerformanceAvailable && h.UnpricedHoldings == 0 && (h.HoldingsAvailable || !holdingsExpected)
	return h
}
