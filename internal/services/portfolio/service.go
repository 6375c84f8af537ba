// Package portfolio derives read models from the current snapshot
package portfolio

import (
	"context"
	"errors"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

// ErrNoSnapshot is returned before the first successful refresh.
var ErrNoSnapshot = errors.New("no snapshot available yet")

// Settings names the portfolio connection the read models belong to.
type Settings struct {
	PortfolioName    string
	ConnectionID     string
	HoldingsExpected bool
}

// Service implements PortfolioService. Nothing is cached: every call
// derives its figures from the snapshot installed at that moment.
type Service struct {
	snapshots interfaces.SnapshotService
	limits    interfaces.LimitService
	settings  Settings
	logger    *common.Logger
}

// NewService creates a new portfolio service
func NewService(snapshots interfaces.SnapshotService, limits interfaces.LimitService, settings Settings, logger *common.Logger) *Service {
	return &Service{
		snapshots: snapshots,
		limits:    limits,
		settings:  settings,
		logger:    logger,
	}
}

func (s *Service) snapshot() (*models.Snapshot, error) {
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Summary returns global and per-account metrics with account health
func (s *Service) Summary(_ context.Context) (*models.PortfolioSummary, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	conn := s.settings.ConnectionID
	summary := &models.PortfolioSummary{
		Name:         s.settings.PortfolioName,
		Key:          models.NewEntityKey(models.KindPortfolio, "", "", conn),
		BaseCurrency: snap.BaseCurrency,
		Global:       PerformanceMetricsFor(snap.GlobalPerformance),
		Accounts:     []models.AccountView{},
		Healthy:      true,
		Degraded:     snap.Degraded,
		FetchedAt:    snap.FetchedAt,
	}

	for _, acct := range snap.ActiveAccounts() {
		view := models.AccountView{
			Account: acct,
			Key:     models.NewEntityKey(models.KindAccount, acct.ID, "", conn),
			Health:  AccountHealthFor(snap, acct.ID, s.settings.HoldingsExpected),
		}
		if perf, ok := snap.AccountPerformance[acct.ID]; ok {
			m := PerformanceMetricsFor(perf)
			view.Performance = &m
		}
		if !view.Health.Healthy {
			summary.Healthy = false
		}
		summary.Accounts = append(summary.Accounts, view)
	}

	return summary, nil
}

// Holdings returns every active holding of every non-excluded account
func (s *Service) Holdings(ctx context.Context) ([]models.HoldingView, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	conn := s.settings.ConnectionID
	views := []models.HoldingView{}
	for _, acct := range snap.ActiveAccounts() {
		for _, h := range snap.Holdings(acct.ID) {
			if !h.IsActive() {
				continue
			}
			ref := models.HoldingRef(acct.ID, h.Symbol, conn)
			metrics := HoldingMetricsFor(h)

			current := h.MarketPrice
			if current <= 0 {
				current = metrics.MarketPriceInBase
			}

			views = append(views, models.HoldingView{
				Key:         ref.Key(),
				AccountID:   acct.ID,
				AccountName: acct.Name,
				Holding:     h,
				Metrics:     metrics,
				LowLimit:    s.limits.Evaluate(ctx, ref, models.LimitLow, current),
				HighLimit:   s.limits.Evaluate(ctx, ref, models.LimitHigh, current),
			})
		}
	}
	return views, nil
}

// Watchlist returns the watchlist annotated with limit status. Items without
// a resolved price never reach a limit.
func (s *Service) Watchlist(ctx context.Context) ([]models.WatchlistView, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	conn := s.settings.ConnectionID
	views := make([]models.WatchlistView, 0, len(snap.Watchlist))
	for _, item := range snap.Watchlist {
		ref := models.WatchlistRef(item.Symbol, conn)
		var current float64
		if item.MarketPrice != nil {
			current = *item.MarketPrice
		}
		views = append(views, models.WatchlistView{
			Key:       ref.Key(),
			Item:      item,
			LowLimit:  s.limits.Evaluate(ctx, ref, models.LimitLow, current),
			HighLimit: s.limits.Evaluate(ctx, ref, models.LimitHigh, current),
		})
	}
	return views, nil
}

var _ interfaces.PortfolioService = (*Service)(nil)
