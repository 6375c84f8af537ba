// Package interfaces defines service contracts for Ghostwatch
package interfaces

import (
	"context"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// LimitStore persists user-set limit values keyed by entity key.
// It is owned outside the refresh cycle and may change at any time.
type LimitStore interface {
	GetLimit(ctx context.Context, key string) (*models.LimitRecord, error)
	SetLimit(ctx context.Context, key, value string) error
	DeleteLimit(ctx context.Context, key string) error
	ListLimits(ctx context.Context) ([]*models.LimitRecord, error)

	// Lifecycle
	Close() error
}
