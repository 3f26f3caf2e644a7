// Package tilesync copies the spots of map tiles from a remote store into a
// local store for offline use, and keeps a ledger of downloaded tiles so a
// tile is only fetched once.
package tilesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SpotSink receives downloaded spots
type SpotSink interface {
	Insert(ctx context.Context, spots ...*models.Spot) error
}

// TileLedger remembers which tiles have been downloaded
type TileLedger interface {
	HasTile(ctx context.Context, t tile.Tile) (bool, error)
	MarkTile(ctx context.Context, t tile.Tile, at time.Time) error
}

// Persister is implemented by sinks that keep writes in memory until
// persisted. Tiles stored into such a sink are marked in the ledger only
// after Persist succeeds.
type Persister interface {
	Persist(ctx context.Context) error
}

// Options tunes a Syncer
type Options struct {
	// Concurrency is the number of tiles downloaded at once
	Concurrency int
	// RatePerSecond limits remote queries; zero disables the limit
	RatePerSecond float64
	// Force downloads tiles even if the ledger already has them
	Force bool
}

// Report summarises a sync run
type Report struct {
	Tiles      int `json:"tiles"`
	Skipped    int `json:"skipped"`
	Downloaded int `json:"downloaded"`
	Spots      int `json:"spots"`
}

// Syncer downloads tiles from a remote range-query store
type Syncer struct {
	remote  nearest.RangeQuery
	local   SpotSink
	ledger  TileLedger
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Syncer. A nil logger discards output.
func New(remote nearest.RangeQuery, local SpotSink, ledger TileLedger, opts Options, logger *slog.Logger) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Syncer{
		remote: remote,
		local:  local,
		ledger: ledger,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	if opts.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Concurrency)
	}
	return s
}

// SyncRectangle downloads every tile covering the rectangle
func (s *Syncer) SyncRectangle(ctx context.Context, bottomLeft, topRight models.Point) (Report, error) {
	tiles, err := tile.TilesCoveringRectangle(bottomLeft, topRight)
	if err != nil {
		return Report{}, err
	}
	return s.SyncTiles(ctx, tiles)
}

// SyncCircle downloads every tile covering the square around the circle
func (s *Syncer) SyncCircle(ctx context.Context, center models.Point, radiusMeters float64) (Report, error) {
	tiles, err := tile.TilesCoveringCircle(center, radiusMeters)
	if err != nil {
		return Report{}, err
	}
	return s.SyncTiles(ctx, tiles)
}

// SyncTiles downloads the given tiles. The first failure cancels the
// remaining downloads and is returned along with the partial report.
func (s *Syncer) SyncTiles(ctx context.Context, tiles []tile.Tile) (Report, error) {
	report := Report{Tiles: len(tiles)}

	pending := make([]tile.Tile, 0, len(tiles))
	for _, t := range tiles {
		if !s.opts.Force {
			has, err := s.ledger.HasTile(ctx, t)
			if err != nil {
				return report, err
			}
			if has {
				report.Skipped++
				continue
			}
		}
		pending = append(pending, t)
	}

	persister, deferMarks := s.local.(Persister)
	var (
		downloaded, spots atomic.Int64
		storedMu          sync.Mutex
		stored            []tile.Tile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, t := range pending {
		g.Go(func() error {
			n, err := s.syncTile(gctx, t, !deferMarks)
			if err != nil {
				return err
			}
			if deferMarks {
				storedMu.Lock()
				stored = append(stored, t)
				storedMu.Unlock()
			}
			downloaded.Add(1)
			spots.Add(int64(n))
			return nil
		})
	}

	err := g.Wait()
	if deferMarks && len(stored) > 0 {
		if perr := s.persistAndMark(ctx, persister, stored); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	report.Downloaded = int(downloaded.Load())
	report.Spots = int(spots.Load())

	s.logger.Info("tile sync finished",
		"tiles", report.Tiles, "skipped", report.Skipped,
		"downloaded", report.Downloaded, "spots", report.Spots)
	return report, err
}

// persistAndMark persists the local sink, then records the stored tiles
func (s *Syncer) persistAndMark(ctx context.Context, p Persister, stored []tile.Tile) error {
	if err := p.Persist(ctx); err != nil {
		return fmt.Errorf("persisting local store: %w", err)
	}
	at := s.now()
	for _, t := range stored {
		if err := s.ledger.MarkTile(ctx, t, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) syncTile(ctx context.Context, t tile.Tile, mark bool) (int, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	spots, err := s.remote.QueryBox(ctx, t.Bounds())
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", t, err)
	}
	if err := s.local.Insert(ctx, spots...); err != nil {
		return 0, fmt.Errorf("storing %s: %w", t, err)
	}
	if mark {
		if err := s.ledger.MarkTile(ctx, t, s.now()); err != nil {
			return 0, err
		}
	}

	s.logger.Debug("tile downloaded", "tile", t.ID(), "spots", len(spots))
	return len(spots), nil
}
