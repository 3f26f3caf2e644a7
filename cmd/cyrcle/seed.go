package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/spf13/cobra"
)

const seedBatchSize = 1000

var (
	numSpots   int
	numWorkers int
	seedCenter models.Point
	seedSpread float64
	randomSeed int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load random parking spots into the configured store",
	Long: `Generate random parking spots around a center point and insert them into
the configured store. Without a center, spots are spread over the populated
regions of the world.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&numSpots, "spots", "n", 10000, "Number of spots to generate")
	seedCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of generator goroutines")
	seedCmd.Flags().Float64Var(&seedCenter.Lon, "lon", 0, "Longitude of the seeded area")
	seedCmd.Flags().Float64Var(&seedCenter.Lat, "lat", 0, "Latitude of the seeded area")
	seedCmd.Flags().Float64Var(&seedSpread, "spread", 0, "Half-width in degrees of the seeded area, 0 for world-wide")
	seedCmd.Flags().Int64Var(&randomSeed, "seed", time.Now().UnixNano(), "Random seed")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := spotstore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore(ctx, logger, store)

	printTitle(fmt.Sprintf("Seeding %d spots into %s store", numSpots, cfg.Store.Driver))

	start := time.Now()
	spots := generateSpots(numSpots, numWorkers, randomSeed)
	genTime := time.Since(start)

	start = time.Now()
	for i := 0; i < len(spots); i += seedBatchSize {
		end := min(i+seedBatchSize, len(spots))
		if err := store.Insert(ctx, spots[i:end]...); err != nil {
			return fmt.Errorf("failed to insert batch at %d: %w", i, err)
		}
		logger.Debug("inserted batch", "from", i, "to", end)
	}
	insertTime := time.Since(start)

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}

	printSuccess("Seed complete")
	printStat("Generated in", genTime)
	printStat("Inserted in", insertTime)
	printStat("Spots per second", fmt.Sprintf("%.0f", float64(len(spots))/insertTime.Seconds()))
	printStat("Spots in store", count)
	return nil
}

// generateSpots builds n random spots in parallel
func generateSpots(n, workers int, seed int64) []*models.Spot {
	if workers < 1 {
		workers = 1
	}
	spots := make([]*models.Spot, n)
	batchSize := n / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startIdx := w * batchSize
		endIdx := startIdx + batchSize
		if w == workers-1 {
			endIdx = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed + int64(start)))
			for i := start; i < end; i++ {
				spot := models.NewSpot(fmt.Sprintf("spot %d", i), randomPoint(r))
				spot.Capacity = 2 + r.Intn(30)
				spots[i] = spot
			}
		}(startIdx, endIdx)
	}

	wg.Wait()
	return spots
}

func randomPoint(r *rand.Rand) models.Point {
	if seedSpread > 0 {
		return clamp(models.Point{
			Lon: seedCenter.Lon + (r.Float64()*2-1)*seedSpread,
			Lat: seedCenter.Lat + (r.Float64()*2-1)*seedSpread,
		})
	}

	// Concentrate around major population centers
	switch r.Intn(5) {
	case 0: // North America
		return models.Point{Lon: r.Float64()*60 - 120, Lat: r.Float64()*30 + 30}
	case 1: // Europe
		return models.Point{Lon: r.Float64()*40 - 10, Lat: r.Float64()*20 + 40}
	case 2: // Asia
		return models.Point{Lon: r.Float64()*80 + 60, Lat: r.Float64()*40 + 20}
	case 3: // South America
		return models.Point{Lon: r.Float64()*30 - 80, Lat: r.Float64()*40 - 50}
	default:
		return models.Point{Lon: r.Float64()*360 - 180, Lat: r.Float64()*180 - 90}
	}
}

func clamp(p models.Point) models.Point {
	p.Lon = max(-180, min(180, p.Lon))
	p.Lat = max(-90, min(90, p.Lat))
	return p
}
