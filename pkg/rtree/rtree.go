// Package rtree implements an in-memory spot store backed by R-Trees.
// Space is split into longitude bands, one tree per band, and box queries fan
// out to the relevant bands in parallel.
package rtree

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	minExtent   = 1e-9
)

var (
	ErrInvalidSpot = errors.New("invalid spot")
	ErrInvalidBox  = errors.New("invalid bounding box")
)

// spatialSpot wraps a spot to implement rtreego.Spatial interface
type spatialSpot struct {
	*models.Spot
	rect *rtreego.Rect
}

func (sp *spatialSpot) Bounds() *rtreego.Rect {
	return sp.rect
}

// SpotIndex is a thread-safe spot store supporting insert, delete and
// inclusive bounding-box queries
type SpotIndex struct {
	// Partitioned trees for parallel query execution
	partitions []*rtreego.Rtree
	mu         sync.RWMutex
	byID       map[string]*spatialSpot
}

// NewSpotIndex creates an index with one partition per CPU
func NewSpotIndex() *SpotIndex {
	return NewSpotIndexWithPartitions(runtime.NumCPU())
}

// NewSpotIndexWithPartitions creates an index with the given partition count
func NewSpotIndexWithPartitions(numPartitions int) *SpotIndex {
	if numPartitions <= 0 {
		numPartitions = runtime.NumCPU()
	}

	// One partition per longitude band of 360/numPartitions degrees
	partitions := make([]*rtreego.Rtree, numPartitions)
	for i := range partitions {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}

	return &SpotIndex{
		partitions: partitions,
		byID:       make(map[string]*spatialSpot),
	}
}

// Insert adds spots to the index, replacing any spot with the same ID.
// The batch is rejected as a whole if any spot is invalid.
func (g *SpotIndex) Insert(spots ...*models.Spot) error {
	items := make([]*spatialSpot, 0, len(spots))
	for _, spot := range spots {
		if spot == nil || spot.ID == "" || !spot.Location.Center.Valid() {
			return fmt.Errorf("%w: %+v", ErrInvalidSpot, spot)
		}
		c := spot.Location.Center
		items = append(items, &spatialSpot{spot, rtreego.Point{c.Lon, c.Lat}.ToRect(tolerance)})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, item := range items {
		if old, ok := g.byID[item.ID]; ok {
			g.partitions[g.partitionFor(old.Location.Center)].Delete(old)
		}
		g.partitions[g.partitionFor(item.Location.Center)].Insert(item)
		g.byID[item.ID] = item
	}
	return nil
}

// Delete removes the spot with the given ID and reports whether it existed
func (g *SpotIndex) Delete(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.byID[id]
	if !ok {
		return false
	}
	g.partitions[g.partitionFor(item.Location.Center)].Delete(item)
	delete(g.byID, id)
	return true
}

// Get returns the spot with the given ID
func (g *SpotIndex) Get(id string) (*models.Spot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	item, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return item.Spot, true
}

// QueryBox returns all spots whose center lies within box, edges included
func (g *SpotIndex) QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Spot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !box.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidBox, box)
	}

	bounds, err := rtreego.NewRect(
		rtreego.Point{box.BottomLeft.Lon, box.BottomLeft.Lat},
		[]float64{
			max(box.TopRight.Lon-box.BottomLeft.Lon, minExtent),
			max(box.TopRight.Lat-box.BottomLeft.Lat, minExtent),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBox, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	relevantPartitions := g.getRelevantPartitions(box)
	resultsChan := make(chan []*models.Spot, len(relevantPartitions))

	// Search partitions in parallel
	for _, partitionIdx := range relevantPartitions {
		go func(idx int) {
			results := g.partitions[idx].SearchIntersect(bounds)

			// The tree stores spots as small rectangles, so filter on the
			// exact center.
			spots := make([]*models.Spot, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialSpot)
				if !ok || item.Spot == nil {
					continue
				}
				if box.Contains(item.Location.Center) {
					spots = append(spots, item.Spot)
				}
			}
			resultsChan <- spots
		}(partitionIdx)
	}

	var allResults []*models.Spot
	for i := 0; i < len(relevantPartitions); i++ {
		allResults = append(allResults, <-resultsChan...)
	}
	return allResults, nil
}

// All returns every spot in the index ordered by ID
func (g *SpotIndex) All() []*models.Spot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	spots := make([]*models.Spot, 0, len(g.byID))
	for _, item := range g.byID {
		spots = append(spots, item.Spot)
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
	return spots
}

// Count returns the number of indexed spots
func (g *SpotIndex) Count() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return int64(len(g.byID))
}

// Clear removes all spots from the index
func (g *SpotIndex) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.partitions {
		g.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	g.byID = make(map[string]*spatialSpot)
}

// partitionFor returns the partition holding spots at p
func (g *SpotIndex) partitionFor(p models.Point) int {
	lonRange := 360.0 / float64(len(g.partitions))
	idx := int((p.Lon + 180.0) / lonRange)
	if idx >= len(g.partitions) {
		idx = len(g.partitions) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// getRelevantPartitions returns the indices of partitions that intersect with
// the given bounding box. Bands are resolved with partitionFor so that a spot
// is always routed to the band it was stored in.
func (g *SpotIndex) getRelevantPartitions(box models.BoundingBox) []int {
	first := g.partitionFor(box.BottomLeft)
	last := g.partitionFor(box.TopRight)

	relevant := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		relevant = append(relevant, i)
	}
	return relevant
}
