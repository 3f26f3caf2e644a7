package nearest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceStore scans a slice of spots and records every box it was asked for
type sliceStore struct {
	mu    sync.Mutex
	spots []*models.Spot
	boxes []models.BoundingBox
}

func (s *sliceStore) QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
	s.mu.Lock()
	s.boxes = append(s.boxes, box)
	s.mu.Unlock()

	var out []*models.Spot
	for _, spot := range s.spots {
		if box.Contains(spot.Location.Center) {
			out = append(out, spot)
		}
	}
	return out, nil
}

func (s *sliceStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boxes)
}

func spot(id string, lon, lat float64) *models.Spot {
	return &models.Spot{ID: id, Location: models.Location{Center: models.Point{Lon: lon, Lat: lat}}}
}

func ids(spots []*models.Spot) []string {
	out := make([]string, len(spots))
	for i, s := range spots {
		out[i] = s.ID
	}
	return out
}

func newSearcher(t *testing.T, opts Options) *Searcher {
	t.Helper()
	s, err := NewSearcher(opts, nil)
	require.NoError(t, err)
	return s
}

func TestFindKClosestScenario(t *testing.T) {
	store := &sliceStore{spots: []*models.Spot{
		spot("a", 46.2, 6.6),
		spot("b", 46.3, 6.7),
		spot("c", 47.1, 7.1),
	}}
	s := newSearcher(t, DefaultOptions())
	ref := models.Point{Lon: 47.1, Lat: 7.1}

	results, err := s.FindKClosest(context.Background(), ref, 1, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(results))
	assert.Equal(t, 1, store.calls())

	results, err = s.FindKClosest(context.Background(), ref, 2, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(results))

	results, err = s.FindKClosest(context.Background(), ref, 3, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(results))
}

func TestFindKClosestZeroK(t *testing.T) {
	store := &sliceStore{spots: []*models.Spot{spot("a", 6.6, 46.5)}}
	s := newSearcher(t, DefaultOptions())

	results, err := s.FindKClosest(context.Background(), models.Point{Lon: 6.6, Lat: 46.5}, 0, store)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 0, store.calls())
}

func TestFindKClosestNegativeK(t *testing.T) {
	store := &sliceStore{}
	s := newSearcher(t, DefaultOptions())

	results, err := s.FindKClosest(context.Background(), models.Point{}, -1, store)
	assert.ErrorIs(t, err, ErrInvalidK)
	assert.Nil(t, results)
	assert.Equal(t, 0, store.calls())
}

func TestFindKClosestInvalidReference(t *testing.T) {
	store := &sliceStore{}
	s := newSearcher(t, DefaultOptions())

	_, err := s.FindKClosest(context.Background(), models.Point{Lon: 6.6, Lat: 91}, 1, store)
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, 0, store.calls())
}

func TestFindKClosestNearPole(t *testing.T) {
	store := &sliceStore{spots: []*models.Spot{
		spot("alert", -62.35, 82.5),
		spot("top", 10, 90),
	}}
	s := newSearcher(t, DefaultOptions())

	results, err := s.FindKClosest(context.Background(), models.Point{Lon: 10, Lat: 89.99}, 1, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, ids(results))
	for _, box := range store.boxes {
		assert.True(t, box.Valid(), "box %+v", box)
	}
}

func TestFindKClosestShortfall(t *testing.T) {
	store := &sliceStore{spots: []*models.Spot{
		spot("near", 6.61, 46.51),
		spot("far", 6.9, 46.7),
		spot("outside", 9.0, 48.0),
	}}
	opts := Options{InitialRadius: 0.01, Step: 0.05, MaxRadius: 0.5}
	s := newSearcher(t, opts)

	results, stats, err := s.FindKClosestWithStats(context.Background(), models.Point{Lon: 6.6, Lat: 46.5}, 5, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, ids(results))
	assert.Equal(t, opts.MaxIterations(), store.calls())
	assert.Equal(t, opts.MaxIterations(), stats.Iterations)
	assert.Equal(t, opts.MaxRadius, stats.FinalRadius)
	assert.Equal(t, 2, stats.Candidates)
}

func TestFindKClosestTermination(t *testing.T) {
	testCases := []struct {
		name  string
		opts  Options
		iters int
	}{
		{"defaults", DefaultOptions(), 100},
		{"uneven step", Options{InitialRadius: 0.01, Step: 0.03, MaxRadius: 0.1}, 4},
		{"single query", Options{InitialRadius: 0.2, Step: 0.1, MaxRadius: 0.2}, 1},
		{"step larger than range", Options{InitialRadius: 0.01, Step: 1, MaxRadius: 0.05}, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &sliceStore{}
			s := newSearcher(t, tc.opts)
			ref := models.Point{Lon: 6.6, Lat: 46.5}

			results, err := s.FindKClosest(context.Background(), ref, 3, store)
			require.NoError(t, err)
			assert.Empty(t, results)
			assert.Equal(t, tc.iters, store.calls())
			assert.Equal(t, tc.opts.MaxIterations(), store.calls())

			// The window grows strictly and ends exactly at the maximum radius.
			prev := 0.0
			for _, box := range store.boxes {
				radius := box.TopRight.Lat - ref.Lat
				assert.Greater(t, radius, prev)
				prev = radius
			}
			last := store.boxes[len(store.boxes)-1]
			assert.InDelta(t, tc.opts.MaxRadius, last.TopRight.Lon-ref.Lon, 1e-9)
		})
	}
}

func TestFindKClosestDeduplicates(t *testing.T) {
	dup := spot("dup", 6.6, 46.5)
	calls := 0
	query := RangeQueryFunc(func(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
		calls++
		// Overlapping windows report the same spot again.
		return []*models.Spot{dup, dup}, nil
	})
	s := newSearcher(t, Options{InitialRadius: 0.01, Step: 0.01, MaxRadius: 0.05})

	results, err := s.FindKClosest(context.Background(), models.Point{Lon: 6.6, Lat: 46.5}, 2, query)
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, ids(results))
	assert.Equal(t, 5, calls)
}

func TestFindKClosestTieBreak(t *testing.T) {
	store := &sliceStore{spots: []*models.Spot{
		spot("b", 6.6, 46.5),
		spot("c", 6.6, 46.5),
		spot("a", 6.6, 46.5),
	}}
	s := newSearcher(t, DefaultOptions())

	results, err := s.FindKClosest(context.Background(), models.Point{Lon: 6.6, Lat: 46.5}, 3, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(results))
}

func TestFindKClosestPrefix(t *testing.T) {
	ref := models.Point{Lon: 6.05, Lat: 46.05}

	// Spots on the reference meridian: every window holds exactly the spots
	// closest to the reference, so smaller answers are prefixes of larger ones.
	var spots []*models.Spot
	for i := 1; i <= 20; i++ {
		spots = append(spots,
			spot(fmt.Sprintf("n%02d", i), ref.Lon, ref.Lat+float64(i)*0.007),
			spot(fmt.Sprintf("s%02d", i), ref.Lon, ref.Lat-float64(i)*0.007-0.0031))
	}
	store := &sliceStore{spots: spots}
	s := newSearcher(t, DefaultOptions())

	full, err := s.FindKClosest(context.Background(), ref, 40, store)
	require.NoError(t, err)
	require.Len(t, full, 40)

	for k := 1; k <= 40; k++ {
		results, err := s.FindKClosest(context.Background(), ref, k, store)
		require.NoError(t, err)
		assert.Equal(t, ids(full[:k]), ids(results), "k=%d", k)
	}

	for i := 1; i < len(full); i++ {
		assert.Less(t,
			models.Distance(ref, full[i-1].Location.Center),
			models.Distance(ref, full[i].Location.Center))
	}
}

func TestFindKClosestQueryError(t *testing.T) {
	errStore := errors.New("store unavailable")
	calls := 0
	query := RangeQueryFunc(func(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
		calls++
		if calls == 3 {
			return nil, errStore
		}
		return []*models.Spot{spot("a", 6.6, 46.5)}, nil
	})
	s := newSearcher(t, DefaultOptions())

	results, err := s.FindKClosest(context.Background(), models.Point{Lon: 6.6, Lat: 46.5}, 5, query)
	assert.ErrorIs(t, err, errStore)
	assert.Nil(t, results)
	assert.Equal(t, 3, calls)
}

func TestFindKClosestCancelled(t *testing.T) {
	s := newSearcher(t, DefaultOptions())
	ref := models.Point{Lon: 6.6, Lat: 46.5}

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		store := &sliceStore{}

		_, err := s.FindKClosest(ctx, ref, 1, store)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, store.calls())
	})

	t.Run("between iterations", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		calls := 0
		query := RangeQueryFunc(func(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			return nil, nil
		})

		results, err := s.FindKClosest(ctx, ref, 1, query)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, results)
		assert.Equal(t, 2, calls)
	})
}

func TestOptionsValidate(t *testing.T) {
	testCases := []struct {
		name  string
		opts  Options
		valid bool
	}{
		{"defaults", DefaultOptions(), true},
		{"max equals initial", Options{InitialRadius: 0.1, Step: 0.1, MaxRadius: 0.1}, true},
		{"zero initial", Options{InitialRadius: 0, Step: 0.1, MaxRadius: 1}, false},
		{"zero step", Options{InitialRadius: 0.1, Step: 0, MaxRadius: 1}, false},
		{"negative step", Options{InitialRadius: 0.1, Step: -0.1, MaxRadius: 1}, false},
		{"max below initial", Options{InitialRadius: 0.5, Step: 0.1, MaxRadius: 0.1}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidOptions)
			_, err = NewSearcher(tc.opts, nil)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestConcurrentSearches(t *testing.T) {
	var spots []*models.Spot
	for i := 0; i < 200; i++ {
		spots = append(spots, spot(fmt.Sprintf("s%03d", i), 6+float64(i%20)*0.01, 46+float64(i/20)*0.01))
	}
	store := &sliceStore{spots: spots}
	s := newSearcher(t, DefaultOptions())
	ref := models.Point{Lon: 6.1, Lat: 46.05}

	expected, err := s.FindKClosest(context.Background(), ref, 15, store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.FindKClosest(context.Background(), ref, 15, store)
			assert.NoError(t, err)
			assert.Equal(t, ids(expected), ids(results))
		}()
	}
	wg.Wait()
}

func BenchmarkFindKClosest(b *testing.B) {
	var spots []*models.Spot
	for i := 0; i < 10000; i++ {
		spots = append(spots, spot(fmt.Sprintf("s%d", i), 6+float64(i%100)*0.005, 46+float64(i/100)*0.005))
	}
	store := &sliceStore{spots: spots}
	s, _ := NewSearcher(DefaultOptions(), nil)
	ref := models.Point{Lon: 6.25, Lat: 46.25}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.FindKClosest(context.Background(), ref, 10, store)
	}
}
