package quote

import (
	"context"
	"fmt"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

// Service enriches watchlist items with resolved market prices.
type Service struct {
	client interfaces.GhostfolioClient
	logger *common.Logger
}

// NewService creates a new quote service.
func NewService(client interfaces.GhostfolioClient, logger *common.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Enrich fetches market data for item and applies it. On error the item is
// returned unchanged alongside the error, so callers can keep it listed.
func (s *Service) Enrich(ctx context.Context, item models.WatchlistItem) (models.WatchlistItem, error) {
	if !item.HasMarketKey() {
		return item, nil
	}

	detail, err := s.client.GetMarketData(ctx, item.DataSource, item.Symbol)
	if err != nil {
		return item, fmt.Errorf("market data for %s/%s: %w", item.DataSource, item.Symbol, err)
	}

	enriched := ApplyMarketData(item, detail)
	if enriched.MarketPrice != nil {
		s.logger.Debug().
			Str("symbol", item.Symbol).
			Float64("price", *enriched.MarketPrice).
			Str("date", enriched.MarketDate).
			Bool("has_change", enriched.MarketChange != nil).
			Msg("Watchlist item enriched")
	}
	return enriched, nil
}
