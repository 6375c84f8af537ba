package entity

import "github.com/bobmcallan/ghostwatch/internal/models"

// ImpliedEntities derives the full entity set of a snapshot. It is pure:
// the same snapshot and options always give the same descriptors in the
// same order.
func ImpliedEntities(snap *models.Snapshot, opts Options) []models.EntityDescriptor {
	if snap == nil {
		return nil
	}

	conn := opts.ConnectionID
	portfolioDevice := "ghostfolio_portfolio_" + conn
	var out []models.EntityDescriptor

	if opts.ShowTotals {
		ref := models.EntityRef{Kind: models.KindPortfolio, ConnectionID: conn}
		out = append(out, models.EntityDescriptor{
			Key:        ref.Key(),
			Ref:        ref,
			Name:       opts.PortfolioName,
			DeviceID:   portfolioDevice,
			DeviceName: opts.PortfolioName,
		})
	}

	for _, acct := range snap.ActiveAccounts() {
		device := accountDevice(acct.ID, conn)

		if opts.ShowAccounts {
			ref := models.EntityRef{Kind: models.KindAccount, ScopeID: acct.ID, ConnectionID: conn}
			out = append(out, models.EntityDescriptor{
				Key:        ref.Key(),
				Ref:        ref,
				Name:       acct.Name,
				DeviceID:   device,
				DeviceName: acct.Name,
				ViaDevice:  portfolioDevice,
			})
		}

		if !opts.ShowHoldings && !opts.HoldingLimits {
			continue
		}
		for _, h := range snap.Holdings(acct.ID) {
			if !h.IsActive() || h.Symbol == "" {
				continue
			}
			ref := models.HoldingRef(acct.ID, h.Symbol, conn)
			if opts.ShowHoldings {
				name := h.Name
				if name == "" {
					name = h.Symbol
				}
				out = append(out, models.EntityDescriptor{
					Key:        ref.Key(),
					Ref:        ref,
					Name:       name,
					DeviceID:   device,
					DeviceName: acct.Name,
					ViaDevice:  portfolioDevice,
				})
			}
			if opts.HoldingLimits {
				out = appendLimits(out, ref, h.Symbol, device, acct.Name, portfolioDevice)
			}
		}
	}

	if opts.ShowWatchlist || opts.WatchlistLimits {
		device := accountDevice(models.WatchlistScope, conn)
		for _, item := range snap.Watchlist {
			if item.Symbol == "" {
				continue
			}
			ref := models.WatchlistRef(item.Symbol, conn)
			if opts.ShowWatchlist {
				out = append(out, models.EntityDescriptor{
					Key:        ref.Key(),
					Ref:        ref,
					Name:       item.Symbol,
					DeviceID:   device,
					DeviceName: models.WatchlistScopeName,
					ViaDevice:  portfolioDevice,
				})
			}
			if opts.WatchlistLimits {
				out = appendLimits(out, ref, item.Symbol, device, models.WatchlistScopeName, portfolioDevice)
			}
		}
	}

	return out
}

func appendLimits(out []models.EntityDescriptor, ref models.EntityRef, symbol, device, deviceName, via string) []models.EntityDescriptor {
	for _, side := range []models.LimitSide{models.LimitLow, models.LimitHigh} {
		limitRef, ok := ref.Limit(side)
		if !ok {
			continue
		}
		out = append(out, models.EntityDescriptor{
			Key:        limitRef.Key(),
			Ref:        limitRef,
			Name:       symbol + " - " + side.Label() + " Limit",
			LimitSide:  side,
			DeviceID:   device,
			DeviceName: deviceName,
			ViaDevice:  via,
		})
	}
	return out
}

func accountDevice(scopeID, conn string) string {
	return "ghostfolio_account_" + scopeID + "_" + conn
}
