// Package sqlstore stores spots in a relational database using flat lon/lat
// columns. Box queries are plain range predicates over those columns, which
// any SQL engine can serve from an ordinary B-tree index.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cyrcle/cyrcle-geo/pkg/models"
)

var (
	ErrNotFound    = errors.New("spot not found")
	ErrInvalidSpot = errors.New("invalid spot")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS spots (
		id TEXT PRIMARY KEY,
		caption TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_spots_lon_lat ON spots (lon, lat)`,
	`CREATE TABLE IF NOT EXISTS downloaded_tiles (
		id TEXT PRIMARY KEY,
		min_lon DOUBLE PRECISION NOT NULL,
		min_lat DOUBLE PRECISION NOT NULL,
		max_lon DOUBLE PRECISION NOT NULL,
		max_lat DOUBLE PRECISION NOT NULL,
		downloaded_at BIGINT NOT NULL
	)`,
}

// Store is a SQL-backed spot store
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database. The caller keeps ownership of db only until
// Close is called on the store.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// OpenSQLite opens (creating if needed) a SQLite database file
func OpenSQLite(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open(SQLite.Driver, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return New(db, SQLite), nil
}

// OpenPostgres connects to a Postgres database
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, Postgres), nil
}

// Dialect returns the SQL dialect of the store
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// InitSchema creates the tables and indexes if they do not exist
func (s *Store) InitSchema(ctx context.Context) error {
	for _, query := range schema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Insert upserts spots in a single transaction
func (s *Store) Insert(ctx context.Context, spots ...*models.Spot) error {
	for _, spot := range spots {
		if spot == nil || spot.ID == "" || !spot.Location.Center.Valid() {
			return fmt.Errorf("%w: %+v", ErrInvalidSpot, spot)
		}
	}
	if len(spots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(`
		INSERT INTO spots (id, caption, capacity, lon, lat)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			caption = excluded.caption,
			capacity = excluded.capacity,
			lon = excluded.lon,
			lat = excluded.lat
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, spot := range spots {
		c := spot.Location.Center
		if _, err := stmt.ExecContext(ctx, spot.ID, spot.Caption, spot.Capacity, c.Lon, c.Lat); err != nil {
			return fmt.Errorf("failed to insert spot %s: %w", spot.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete removes a spot, returning ErrNotFound if it does not exist
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM spots WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete spot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete spot %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the spot with the given ID
func (s *Store) Get(ctx context.Context, id string) (*models.Spot, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT id, caption, capacity, lon, lat FROM spots WHERE id = ?`), id)

	spot, err := scanSpot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot %s: %w", id, err)
	}
	return spot, nil
}

// QueryBox returns all spots whose center lies within box, edges included
func (s *Store) QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, caption, capacity, lon, lat
		FROM spots
		WHERE lon BETWEEN ? AND ? AND lat BETWEEN ? AND ?
	`), box.BottomLeft.Lon, box.TopRight.Lon, box.BottomLeft.Lat, box.TopRight.Lat)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []*models.Spot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored spots
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spots").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count spots: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSpot(row scanner) (*models.Spot, error) {
	var spot models.Spot
	if err := row.Scan(&spot.ID, &spot.Caption, &spot.Capacity,
		&spot.Location.Center.Lon, &spot.Location.Center.Lat); err != nil {
		return nil, err
	}
	return &spot, nil
}
