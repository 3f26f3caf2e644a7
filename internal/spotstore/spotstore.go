// Package spotstore opens the spot store selected by configuration behind a
// single interface.
package spotstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyrcle/cyrcle-geo/internal/config"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/cyrcle/cyrcle-geo/pkg/rtree"
	"github.com/cyrcle/cyrcle-geo/pkg/sqlstore"
)

// ErrNotFound is returned when a spot does not exist
var ErrNotFound = sqlstore.ErrNotFound

// Store is the capability set shared by every driver
type Store interface {
	nearest.RangeQuery
	Insert(ctx context.Context, spots ...*models.Spot) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Spot, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

var (
	_ Store = (*sqlstore.Store)(nil)
	_ Store = (*Memory)(nil)
)

// Open opens the configured store, creating its schema if needed
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		m, err := OpenMemory(cfg.Path)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverSQLite, config.DriverPostgres:
		var s *sqlstore.Store
		var err error
		if cfg.Driver == config.DriverSQLite {
			s, err = sqlstore.OpenSQLite(cfg.Path)
		} else {
			s, err = sqlstore.OpenPostgres(cfg.DSN)
		}
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Memory is an R-tree index persisted to a snapshot file on Close
type Memory struct {
	*rtree.SpotIndex
	path string
}

// OpenMemory loads the snapshot at path if it exists. An empty path keeps
// the index purely in memory.
func OpenMemory(path string) (*Memory, error) {
	m := &Memory{SpotIndex: rtree.NewSpotIndex(), path: path}
	if path == "" {
		return m, nil
	}
	if err := m.LoadFromFile(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, err
	}
	return m, nil
}

// Insert adds or replaces spots
func (m *Memory) Insert(_ context.Context, spots ...*models.Spot) error {
	return m.SpotIndex.Insert(spots...)
}

// Delete removes a spot
func (m *Memory) Delete(_ context.Context, id string) error {
	if !m.SpotIndex.Delete(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns a spot by ID
func (m *Memory) Get(_ context.Context, id string) (*models.Spot, error) {
	spot, ok := m.SpotIndex.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return spot, nil
}

// Count returns the number of spots
func (m *Memory) Count(_ context.Context) (int64, error) {
	return m.SpotIndex.Count(), nil
}

// Persist writes the snapshot. It is a no-op without a path.
func (m *Memory) Persist(_ context.Context) error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return m.SaveToFile(m.path)
}

// Close writes the snapshot
func (m *Memory) Close() error {
	return m.Persist(context.Background())
}
