// Package interfaces defines service contracts for Ghostwatch
package interfaces

import (
	"context"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// SnapshotService runs refresh cycles and holds the latest snapshot
type SnapshotService interface {
	// Refresh runs one cycle and installs the result. The previous snapshot
	// stays current when the cycle fails.
	Refresh(ctx context.Context) (*models.Snapshot, error)

	// Current returns the installed snapshot, or nil before the first success
	Current() *models.Snapshot
}

// EntityReconciler tracks exposed entities across cycles
type EntityReconciler interface {
	// Reconcile returns entities implied by the snapshot that were not known before
	Reconcile(snapshot *models.Snapshot) []models.EntityDescriptor

	// Known returns every entity exposed so far, sorted by key
	Known() []models.EntityDescriptor
}

// LimitService reads and writes user limits and evaluates them
type LimitService interface {
	// Evaluate cross-references current against the limit paired with ref
	Evaluate(ctx context.Context, ref models.EntityRef, side models.LimitSide, current float64) models.LimitStatus

	// GetLimit returns the stored limit for a key
	GetLimit(ctx context.Context, key models.EntityKey) (*models.LimitRecord, error)

	// SetLimit stores a limit value; zero clears it
	SetLimit(ctx context.Context, key models.EntityKey, value float64) error

	// ClearLimit removes a limit
	ClearLimit(ctx context.Context, key models.EntityKey) error

	// ListLimits returns every stored limit
	ListLimits(ctx context.Context) ([]*models.LimitRecord, error)
}

// PortfolioService derives read models from the current snapshot
type PortfolioService interface {
	// Summary returns global and per-account metrics
	Summary(ctx context.Context) (*models.PortfolioSummary, error)

	// Holdings returns active holdings with metrics and limit status
	Holdings(ctx context.Context) ([]models.HoldingView, error)

	// Watchlist returns watchlist items with limit status
	Watchlist(ctx context.Context) ([]models.WatchlistView, error)
}

// WatchlistEnricher attaches resolved market prices to watchlist items
type WatchlistEnricher interface {
	// Enrich returns the item with price fields set; on error the item is returned unchanged
	Enrich(ctx context.Context, item models.WatchlistItem) (models.WatchlistItem, error)
}
