// Package entity tracks the set of entities exposed for a portfolio
// connection. The set only grows: entities whose holding later disappears
// stay known until the process restarts.
package entity

import (
	"sort"
	"sync"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

// Options selects which entity kinds are derived from a snapshot.
type Options struct {
	PortfolioName   string
	ConnectionID    string
	ShowTotals      bool
	ShowAccounts    bool
	ShowHoldings    bool
	ShowWatchlist   bool
	HoldingLimits   bool
	WatchlistLimits bool
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *common.Config) Options {
	return Options{
		PortfolioName:   cfg.Sync.PortfolioName,
		ConnectionID:    cfg.ConnectionID(),
		ShowTotals:      cfg.Sync.ShowTotals,
		ShowAccounts:    cfg.Sync.ShowAccounts,
		ShowHoldings:    cfg.Sync.ShowHoldings,
		ShowWatchlist:   cfg.Sync.ShowWatchlist,
		HoldingLimits:   cfg.Sync.HoldingLimits,
		WatchlistLimits: cfg.Sync.WatchlistLimits,
	}
}

// Reconciler implements EntityReconciler.
type Reconciler struct {
	opts   Options
	logger *common.Logger

	mu    sync.RWMutex
	known map[models.EntityKey]models.EntityDescriptor
}

// NewReconciler creates an empty reconciler.
func NewReconciler(opts Options, logger *common.Logger) *Reconciler {
	return &Reconciler{
		opts:   opts,
		logger: logger,
		known:  make(map[models.EntityKey]models.EntityDescriptor),
	}
}

// Reconcile records every entity implied by snap and returns the ones that
// were not known before, in derivation order. A nil snapshot implies nothing.
func (r *Reconciler) Reconcile(snap *models.Snapshot) []models.EntityDescriptor {
	implied := ImpliedEntities(snap, r.opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []models.EntityDescriptor
	for _, d := range implied {
		if _, ok := r.known[d.Key]; ok {
			continue
		}
		r.known[d.Key] = d
		added = append(added, d)
	}

	if len(added) > 0 {
		r.logger.Info().Int("new", len(added)).Int("known", len(r.known)).Msg("New entities discovered")
	}
	return added
}

// Known returns every entity exposed so far, sorted by key.
func (r *Reconciler) Known() []models.EntityDescriptor {
	r.mu.RLock()
	out := make([]models.EntityDescriptor, 0, len(r.known))
	for _, d := range r.known {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// IsKnown reports whether key has been exposed.
func (r *Reconciler) IsKnown(key models.EntityKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[key]
	return ok
}

var _ interfaces.EntityReconciler = (*Reconciler)(nil)
