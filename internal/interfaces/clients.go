// Package interfaces defines service contracts for Ghostwatch
package interfaces

import (
	"context"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// GhostfolioClient provides authenticated access to the Ghostfolio API
type GhostfolioClient interface {
	// Authenticate exchanges the access token for a session token
	Authenticate(ctx context.Context) error

	// GetAccounts retrieves all accounts and the user's base currency
	GetAccounts(ctx context.Context) (*models.AccountList, error)

	// GetPortfolioPerformance retrieves performance; an empty accountID means the whole portfolio
	GetPortfolioPerformance(ctx context.Context, accountID string) (*models.Performance, error)

	// GetHoldings retrieves holdings for one account
	GetHoldings(ctx context.Context, accountID string) ([]models.Holding, error)

	// GetWatchlist retrieves the watchlist items
	GetWatchlist(ctx context.Context) ([]models.WatchlistItem, error)

	// GetMarketData retrieves price history and profile for a symbol
	GetMarketData(ctx context.Context, dataSource, symbol string) (*models.MarketDataDetail, error)
}
