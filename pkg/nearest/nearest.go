// Package nearest finds the K spots closest to a point using nothing but a
// bounding-box range query. The query box starts small and grows by a fixed
// step until enough candidates are found or a maximum radius is reached, so
// the number of range queries per search is bounded regardless of data size.
package nearest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
)

var (
	ErrInvalidK         = errors.New("k must not be negative")
	ErrInvalidOptions   = errors.New("invalid search options")
	ErrInvalidReference = errors.New("invalid reference point")
)

// RangeQuery returns every spot whose center lies inside box, edges included
type RangeQuery interface {
	QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error)
}

// RangeQueryFunc adapts a function to the RangeQuery interface
type RangeQueryFunc func(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error)

// QueryBox calls f(ctx, box)
func (f RangeQueryFunc) QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
	return f(ctx, box)
}

// Options controls how the search window grows. All values are in degrees.
type Options struct {
	InitialRadius float64 `yaml:"initial_radius" toml:"initial_radius"`
	Step          float64 `yaml:"step" toml:"step"`
	MaxRadius     float64 `yaml:"max_radius" toml:"max_radius"`
}

// DefaultOptions returns options suited to regional parking data. Spots
// farther than MaxRadius (1 degree) along either axis are never found.
func DefaultOptions() Options {
	return Options{
		InitialRadius: 0.01,
		Step:          0.01,
		MaxRadius:     1.0,
	}
}

// Validate checks that the window grows and is bounded
func (o Options) Validate() error {
	switch {
	case !(o.InitialRadius > 0) || math.IsInf(o.InitialRadius, 0):
		return fmt.Errorf("%w: initial radius %v must be positive", ErrInvalidOptions, o.InitialRadius)
	case !(o.Step > 0) || math.IsInf(o.Step, 0):
		return fmt.Errorf("%w: step %v must be positive", ErrInvalidOptions, o.Step)
	case !(o.MaxRadius >= o.InitialRadius) || math.IsInf(o.MaxRadius, 0):
		return fmt.Errorf("%w: max radius %v must be at least the initial radius %v",
			ErrInvalidOptions, o.MaxRadius, o.InitialRadius)
	}
	return nil
}

// MaxIterations is the upper bound on range queries issued by one search
func (o Options) MaxIterations() int {
	return o.growSteps() + 1
}

// growSteps is the number of times the radius can grow before reaching MaxRadius
func (o Options) growSteps() int {
	n := math.Ceil((o.MaxRadius-o.InitialRadius)/o.Step - 1e-9)
	if n < 0 {
		return 0
	}
	return int(n)
}

// radius returns the search radius used by the i-th iteration
func (o Options) radius(i int) float64 {
	if i >= o.growSteps() {
		return o.MaxRadius
	}
	return math.Min(o.InitialRadius+float64(i)*o.Step, o.MaxRadius)
}

// Stats describes how a single search went
type Stats struct {
	Iterations  int
	FinalRadius float64
	Candidates  int
}

// Searcher runs expanding-radius searches. It holds no per-search state and
// is safe for concurrent use.
type Searcher struct {
	opts   Options
	logger *slog.Logger
}

// NewSearcher creates a searcher. A nil logger discards output.
func NewSearcher(opts Options, logger *slog.Logger) (*Searcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Searcher{opts: opts, logger: logger}, nil
}

// Options returns the options the searcher was built with
func (s *Searcher) Options() Options {
	return s.opts
}

// FindKClosest returns up to k spots ordered by great-circle distance to ref.
// Fewer than k spots are returned when the search reaches its maximum radius
// first. k == 0 returns an empty result without querying.
func (s *Searcher) FindKClosest(ctx context.Context, ref models.Point, k int, query RangeQuery) ([]*models.Spot, error) {
	spots, _, err := s.FindKClosestWithStats(ctx, ref, k, query)
	return spots, err
}

// FindKClosestWithStats is FindKClosest that also reports search statistics
func (s *Searcher) FindKClosestWithStats(ctx context.Context, ref models.Point, k int, query RangeQuery) ([]*models.Spot, Stats, error) {
	var stats Stats
	if k < 0 {
		return nil, stats, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if !ref.Valid() {
		return nil, stats, fmt.Errorf("%w: %+v", ErrInvalidReference, ref)
	}
	if k == 0 {
		return []*models.Spot{}, stats, nil
	}

	found := make(map[string]*models.Spot)
	maxIter := s.opts.MaxIterations()

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		radius := s.opts.radius(i)
		results, err := query.QueryBox(ctx, models.BoxAround(ref, radius))
		if err != nil {
			return nil, stats, fmt.Errorf("range query at radius %.4f: %w", radius, err)
		}
		for _, spot := range results {
			if spot == nil {
				continue
			}
			found[spot.ID] = spot
		}

		stats.Iterations = i + 1
		stats.FinalRadius = radius
		if len(found) >= k || radius >= s.opts.MaxRadius {
			break
		}
	}
	stats.Candidates = len(found)

	ranked := Rank(ref, found)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	s.logger.Debug("nearest search finished",
		"lon", ref.Lon, "lat", ref.Lat, "k", k,
		"iterations", stats.Iterations, "radius", stats.FinalRadius,
		"candidates", stats.Candidates, "returned", len(ranked))

	return ranked, stats, nil
}

// Rank orders spots by great-circle distance to ref, ties broken by ID
func Rank(ref models.Point, spots map[string]*models.Spot) []*models.Spot {
	type ranked struct {
		spot     *models.Spot
		distance float64
	}

	all := make([]ranked, 0, len(spots))
	for _, spot := range spots {
		all = append(all, ranked{
			spot:     spot,
			distance: models.Distance(ref, spot.Location.Center),
		})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].distance != all[j].distance {
			return all[i].distance < all[j].distance
		}
		return all[i].spot.ID < all[j].spot.ID
	})

	result := make([]*models.Spot, len(all))
	for i, r := range all {
		result[i] = r.spot
	}
	return result
}
