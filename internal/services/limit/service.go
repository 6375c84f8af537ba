// Package limit evaluates user-set low/high limits against current prices
package limit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

var (
	// ErrInvalidValue is returned for values outside the accepted range.
	ErrInvalidValue = errors.New("invalid limit value")
	// ErrInvalidKey is returned when a key does not name a limit entity.
	ErrInvalidKey = errors.New("not a limit key")
)

// Service implements LimitService over a LimitStore.
type Service struct {
	store  interfaces.LimitStore
	logger *common.Logger
}

// NewService creates a new limit service.
func NewService(store interfaces.LimitStore, logger *common.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Evaluate reports whether the limit paired with ref on the given side is set
// and whether current has reached it. Missing, unparseable and zero limits
// are all reported as not set.
func (s *Service) Evaluate(ctx context.Context, ref models.EntityRef, side models.LimitSide, current float64) models.LimitStatus {
	limitRef, ok := ref.Limit(side)
	if !ok {
		return models.LimitStatus{}
	}
	key := limitRef.Key()

	rec, err := s.store.GetLimit(ctx, string(key))
	if err != nil {
		if !errors.Is(err, limitdb.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", string(key)).Msg("Failed to read limit")
		}
		return models.LimitStatus{}
	}

	value, ok := parseLimit(rec.Value)
	if !ok {
		s.logger.Debug().Str("key", string(key)).Str("value", rec.Value).Msg("Ignoring unparseable limit")
		return models.LimitStatus{}
	}
	return Compare(side, value, current)
}

// Compare evaluates a parsed limit. A limit of 0 is treated as unset, and a
// non-positive current value never reaches a limit.
func Compare(side models.LimitSide, limit, current float64) models.LimitStatus {
	if limit == 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		return models.LimitStatus{}
	}

	status := models.LimitStatus{IsSet: true, Value: &limit}
	if current <= 0 {
		return status
	}
	switch side {
	case models.LimitLow:
		status.IsReached = current <= limit
	case models.LimitHigh:
		status.IsReached = current >= limit
	}
	return status
}

func parseLimit(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (s *Service) GetLimit(ctx context.Context, key models.EntityKey) (*models.LimitRecord, error) {
	return s.store.GetLimit(ctx, string(key))
}

// SetLimit stores value rounded to the limit step. Zero clears the limit.
func (s *Service) SetLimit(ctx context.Context, key models.EntityKey, value float64) error {
	if !IsLimitKey(key) {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < models.LimitMinValue || value > models.LimitMaxValue {
		return fmt.Errorf("%w: %v (allowed %d..%d)", ErrInvalidValue, value, models.LimitMinValue, models.LimitMaxValue)
	}
	if value == 0 {
		return s.ClearLimit(ctx, key)
	}

	rounded := decimal.NewFromFloat(value).Round(2)
	if rounded.IsZero() {
		return s.ClearLimit(ctx, key)
	}
	if err := s.store.SetLimit(ctx, string(key), rounded.String()); err != nil {
		return err
	}
	s.logger.Info().Str("key", string(key)).Str("value", rounded.String()).Msg("Limit set")
	return nil
}

// ClearLimit removes the stored limit for key.
func (s *Service) ClearLimit(ctx context.Context, key models.EntityKey) error {
	if !IsLimitKey(key) {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if err := s.store.DeleteLimit(ctx, string(key)); err != nil {
		return err
	}
	s.logger.Info().Str("key", string(key)).Msg("Limit cleared")
	return nil
}

func (s *Service) ListLimits(ctx context.Context) ([]*models.LimitRecord, error) {
	return s.store.ListLimits(ctx)
}

// IsLimitKey reports whether key names a holding or watchlist limit.
func IsLimitKey(key models.EntityKey) bool {
	k := string(key)
	return strings.HasPrefix(k, "ghostfolio_limit_") || strings.HasPrefix(k, "ghostfolio_watchlist_limit_")
}

var _ interfaces.LimitService = (*Service)(nil)
