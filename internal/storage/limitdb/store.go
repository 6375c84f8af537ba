// Package limitdb implements LimitStore using BadgerHold.
// It persists the user-set low/high limit values keyed by entity key.
package limitdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/interfaces"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

// ErrNotFound is returned when no limit is stored under a key.
var ErrNotFound = errors.New("limit not found")

// Store implements interfaces.LimitStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore opens (creating if needed) the limit database at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create limit db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open limit db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("LimitDB opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) GetLimit(_ context.Context, key string) (*models.LimitRecord, error) {
	var rec models.LimitRecord
	if err := s.db.Get(key, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("key '%s': %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get limit '%s': %w", key, err)
	}
	return &rec, nil
}

// maxConflictRetries bounds how often a conflicting SetLimit transaction is retried.
const maxConflictRetries = 64

// SetLimit stores value under key, bumping the record version on overwrite.
// The read and the write share one transaction; a commit conflict with a
// concurrent writer is retried so versions stay strictly increasing.
func (s *Store) SetLimit(_ context.Context, key, value string) error {
	var (
		version int
		err     error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		version, err = s.setLimitTx(key, value)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to set limit '%s': %w", key, err)
	}
	s.logger.Debug().Str("key", key).Str("value", value).Int("version", version).Msg("Limit saved")
	return nil
}

func (s *Store) setLimitTx(key, value string) (int, error) {
	version := 1
	err := s.db.Badger().Update(func(tx *badger.Txn) error {
		var existing models.LimitRecord
		switch err := s.db.TxGet(tx, key, &existing); {
		case err == nil:
			version = existing.Version + 1
		case !errors.Is(err, badgerhold.ErrNotFound):
			return err
		}
		return s.db.TxUpsert(tx, key, &models.LimitRecord{
			Key:      key,
			Value:    value,
			Version:  version,
			DateTime: time.Now(),
		})
	})
	return version, err
}

// DeleteLimit removes key. Deleting an absent key is not an error.
func (s *Store) DeleteLimit(_ context.Context, key string) error {
	if err := s.db.Delete(key, models.LimitRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete limit '%s': %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("Limit deleted")
	return nil
}

// ListLimits returns every stored limit ordered by key.
func (s *Store) ListLimits(_ context.Context) ([]*models.LimitRecord, error) {
	var all []models.LimitRecord
	if err := s.db.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list limits: %w", err)
	}
	result := make([]*models.LimitRecord, len(all))
	for i := range all {
		rec := all[i]
		result[i] = &rec
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Close shuts down the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ interfaces.LimitStore = (*Store)(nil)
