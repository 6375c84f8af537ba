// Package snapshot runs refresh cycles against Ghostfolio and holds the
// latest merged snapshot.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

// ErrUpdateFailed marks a cycle whose mandatory fetches failed. The
// previously installed snapshot remains current.
var ErrUpdateFailed = errors.New("snapshot update failed")

var errEmptyResponse = errors.New("empty response")

// Options controls which optional categories a cycle fetches.
type Options struct {
	FetchHoldings  bool
	FetchWatchlist bool
	MaxConcurrent  int
}

// OptionsFromConfig builds Options from the sync section.
func OptionsFromConfig(cfg common.SyncConfig) Options {
	return Options{
		FetchHoldings:  cfg.ShowHoldings || cfg.HoldingLimits,
		FetchWatchlist: cfg.ShowWatchlist || cfg.WatchlistLimits,
		MaxConcurrent:  cfg.MaxConcurrent,
	}
}

// Service implements SnapshotService.
type Service struct {
	client   interfaces.GhostfolioClient
	enricher interfaces.WatchlistEnricher
	opts     Options
	logger   *common.Logger
	now      func() time.Time // injectable clock for testing

	cycleMu sync.Mutex
	current atomic.Pointer[models.Snapshot]
}

// NewService creates a new snapshot service.
func NewService(client interfaces.GhostfolioClient, enricher interfaces.WatchlistEnricher, opts Options, logger *common.Logger) *Service {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Service{
		client:   client,
		enricher: enricher,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Current returns the installed snapshot, or nil before the first success.
func (s *Service) Current() *models.Snapshot {
	return s.current.Load()
}

// Refresh runs one cycle. Cycles never overlap: a caller arriving during a
// running cycle waits for it and then runs its own.
func (s *Service) Refresh(ctx context.Context) (*models.Snapshot, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now()

	accounts, err := s.client.GetAccounts(ctx)
	if err == nil && accounts == nil {
		err = errEmptyResponse
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch accounts")
		return nil, fmt.Errorf("%w: accounts: %v", ErrUpdateFailed, err)
	}
	global, err := s.client.GetPortfolioPerformance(ctx, "")
	if err == nil && global == nil {
		err = errEmptyResponse
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch global performance")
		return nil, fmt.Errorf("%w: global performance: %v", ErrUpdateFailed, err)
	}

	snap := &models.Snapshot{
		Accounts:           accounts.Accounts,
		BaseCurrency:       accounts.BaseCurrency,
		GlobalPerformance:  *global,
		AccountPerformance: make(map[string]models.Performance),
		HoldingsByAccount:  make(map[string][]models.Holding),
		Watchlist:          []models.WatchlistItem{},
	}

	var degraded degradedSet
	s.fetchAccounts(ctx, snap, &degraded)
	if s.opts.FetchWatchlist {
		snap.Watchlist = s.fetchWatchlist(ctx, &degraded)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}

	snap.Degraded = degraded.sorted()
	snap.FetchedAt = s.now()
	snap.Elapsed = snap.FetchedAt.Sub(start)
	s.current.Store(snap)

	s.logger.Info().
		Int("accounts", len(snap.ActiveAccounts())).
		Int("watchlist", len(snap.Watchlist)).
		Int("degraded", len(snap.Degraded)).
		Dur("elapsed", snap.Elapsed).
		Msg("Snapshot refreshed")

	return snap, nil
}

// fetchAccounts fetches performance and holdings for every non-excluded
// account. Each sub-fetch succeeds or fails on its own.
func (s *Service) fetchAccounts(ctx context.Context, snap *models.Snapshot, degraded *degradedSet) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.opts.MaxConcurrent)

	for _, acct := range snap.ActiveAccounts() {
		acct := acct

		g.Go(func() error {
			perf, err := s.client.GetPortfolioPerformance(ctx, acct.ID)
			if err == nil && perf == nil {
				err = errEmptyResponse
			}
			if err != nil {
				s.logger.Warn().Err(err).Str("account", acct.Name).Msg("Failed to fetch account performance")
				degraded.add("performance:" + acct.ID)
				return nil
			}
			mu.Lock()
			snap.AccountPerformance[acct.ID] = *perf
			mu.Unlock()
			return nil
		})

		if !s.opts.FetchHoldings {
			continue
		}
		g.Go(func() error {
			holdings, err := s.client.GetHoldings(ctx, acct.ID)
			if err != nil {
				s.logger.Warn().Err(err).Str("account", acct.Name).Msg("Failed to fetch account holdings")
				degraded.add("holdings:" + acct.ID)
				return nil
			}
			mu.Lock()
			snap.HoldingsByAccount[acct.ID] = holdings
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
}

// fetchWatchlist returns the enriched watchlist, or an empty list when the
// watchlist itself cannot be fetched. Items that fail enrichment stay listed.
func (s *Service) fetchWatchlist(ctx context.Context, degraded *degradedSet) []models.WatchlistItem {
	items, err := s.client.GetWatchlist(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch watchlist")
		degraded.add("watchlist")
		return []models.WatchlistItem{}
	}
	if s.enricher == nil {
		return items
	}

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)

	for i := range items {
		i := i
		if !items[i].HasMarketKey() {
			continue
		}
		g.Go(func() error {
			enriched, err := s.enricher.Enrich(ctx, items[i])
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", items[i].Symbol).Msg("Failed to enrich watchlist item")
				degraded.add("market_data:" + items[i].Symbol)
				return nil
			}
			items[i] = enriched
			return nil
		})
	}

	_ = g.Wait()
	return items
}

// degradedSet collects the names of failed sub-fetches from concurrent workers.
type degradedSet struct {
	mu    sync.Mutex
	names []string
}

func (d *degradedSet) add(name string) {
	d.mu.Lock()
	d.names = append(d.names, name)
	d.mu.Unlock()
}

func (d *degradedSet) sorted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.names) == 0 {
		return nil
	}
	out := append([]string(nil), d.names...)
	sort.Strings(out)
	return out
}

var _ interfaces.SnapshotService = (*Service)(nil)
