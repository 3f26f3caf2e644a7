package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
)

// MarkTile records that the spots of t have been downloaded at the given time
func (s *Store) MarkTile(ctx context.Context, t tile.Tile, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO downloaded_tiles (id, min_lon, min_lat, max_lon, max_lat, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET downloaded_at = excluded.downloaded_at
	`), t.ID(), t.BottomLeft.Lon, t.BottomLeft.Lat, t.TopRight.Lon, t.TopRight.Lat, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to mark %s: %w", t, err)
	}
	return nil
}

// HasTile reports whether t has been downloaded
func (s *Store) HasTile(ctx context.Context, t tile.Tile) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT COUNT(*) FROM downloaded_tiles WHERE id = ?`), t.ID()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", t, err)
	}
	return n > 0, nil
}

// ForgetTile removes t from the ledger so the next sync downloads it again
func (s *Store) ForgetTile(ctx context.Context, t tile.Tile) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM downloaded_tiles WHERE id = ?`), t.ID()); err != nil {
		return fmt.Errorf("failed to forget %s: %w", t, err)
	}
	return nil
}

// DownloadedTile is a ledger entry
type DownloadedTile struct {
	Tile         tile.Tile
	DownloadedAt time.Time
}

// Tiles lists the ledger ordered by tile ID
func (s *Store) Tiles(ctx context.Context) ([]DownloadedTile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT min_lon, min_lat, max_lon, max_lat, downloaded_at
		FROM downloaded_tiles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", err)
	}
	defer rows.Close()

	var tiles []DownloadedTile
	for rows.Next() {
		var bl, tr models.Point
		var at int64
		if err := rows.Scan(&bl.Lon, &bl.Lat, &tr.Lon, &tr.Lat, &at); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		tiles = append(tiles, DownloadedTile{
			Tile:         tile.Tile{BottomLeft: bl, TopRight: tr},
			DownloadedAt: time.UnixMilli(at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tiles, nil
}
