package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/cyrcle/cyrcle-geo/pkg/rtree"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
	"github.com/mattn/go-isatty"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// queryFunc runs one random query and returns the number of results
type queryFunc func(ctx context.Context, r *rand.Rand) (int, error)

type area struct {
	minLat, maxLat, minLon, maxLon float64
}

func (a area) randomPoint(r *rand.Rand) models.Point {
	return models.Point{
		Lon: a.minLon + r.Float64()*(a.maxLon-a.minLon),
		Lat: a.minLat + r.Float64()*(a.maxLat-a.minLat),
	}
}

func main() {
	var (
		indexFile  = flag.String("i", "data/spots.gob.zst", "Snapshot file path")
		queryType  = flag.String("t", "nearest", "Query type: box, nearest, tiles, mixed")
		numQueries = flag.Int("n", 1000, "Number of queries to run")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		// Geographic bounds for random queries (default: roughly Europe)
		minLat = flag.Float64("min-lat", 40.0, "Minimum latitude for random queries")
		maxLat = flag.Float64("max-lat", 60.0, "Maximum latitude for random queries")
		minLon = flag.Float64("min-lon", -10.0, "Minimum longitude for random queries")
		maxLon = flag.Float64("max-lon", 30.0, "Maximum longitude for random queries")
		// Query-specific parameters
		boxSize = flag.Float64("box-size", 0.1, "Box size in degrees (for box queries)")
		radius  = flag.Float64("radius", 5000, "Circle radius in meters (for tile queries)")
		k       = flag.Int("k", 10, "Number of nearest spots")
		step    = flag.Float64("step", nearest.DefaultOptions().Step, "Search radius step in degrees")
		maxRad  = flag.Float64("max-radius", nearest.DefaultOptions().MaxRadius, "Maximum search radius in degrees")
	)
	flag.Parse()

	// Load index
	log.Printf("Loading snapshot from %s...\n", *indexFile)
	index := rtree.NewSpotIndex()
	if err := index.LoadFromFile(*indexFile); err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	log.Printf("Index loaded with %d spots\n", index.Count())

	opts := nearest.DefaultOptions()
	opts.Step = *step
	opts.MaxRadius = *maxRad
	searcher, err := nearest.NewSearcher(opts, nil)
	if err != nil {
		log.Fatalf("Invalid search options: %v", err)
	}

	bounds := area{minLat: *minLat, maxLat: *maxLat, minLon: *minLon, maxLon: *maxLon}

	queries := map[string]queryFunc{
		"box": func(ctx context.Context, r *rand.Rand) (int, error) {
			bl := models.Point{
				Lon: bounds.minLon + r.Float64()*(bounds.maxLon-bounds.minLon-*boxSize),
				Lat: bounds.minLat + r.Float64()*(bounds.maxLat-bounds.minLat-*boxSize),
			}
			box := models.BoundingBox{
				BottomLeft: bl,
				TopRight:   models.Point{Lon: bl.Lon + *boxSize, Lat: bl.Lat + *boxSize},
			}
			results, err := index.QueryBox(ctx, box)
			return len(results), err
		},
		"nearest": func(ctx context.Context, r *rand.Rand) (int, error) {
			results, err := searcher.FindKClosest(ctx, bounds.randomPoint(r), *k, index)
			return len(results), err
		},
		"tiles": func(ctx context.Context, r *rand.Rand) (int, error) {
			tiles, err := tile.TilesCoveringCircle(bounds.randomPoint(r), *radius)
			return len(tiles), err
		},
	}

	ctx := context.Background()
	total := *numQueries
	var run func(done *atomic.Int64) BenchmarkResult
	switch *queryType {
	case "box", "nearest", "tiles":
		run = func(done *atomic.Int64) BenchmarkResult {
			return runBenchmark(ctx, *queryType, queries[*queryType], *numQueries, *workers, done)
		}
	case "mixed":
		total = 3 * (*numQueries / 3)
		run = func(done *atomic.Int64) BenchmarkResult {
			return benchmarkMixed(ctx, queries, *numQueries, *workers, done)
		}
	default:
		log.Fatalf("Unknown query type: %s", *queryType)
	}

	// Live progress view on a terminal, plain log lines otherwise
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		m := newModel(*queryType, total, *workers, run)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatalf("Failed to run progress view: %v", err)
		}
		return
	}

	log.Printf("Running %d %s queries with %d workers...\n", total, *queryType, *workers)
	result := run(new(atomic.Int64))

	fmt.Println("\n=== Benchmark Results ===")
	for _, row := range resultRows(result, *workers) {
		fmt.Printf("%s: %s\n", row[0], row[1])
	}
}

// resultRows returns the report lines as label/value pairs
func resultRows(result BenchmarkResult, workers int) [][2]string {
	return [][2]string{
		{"Query Type", result.QueryType},
		{"Total Queries", fmt.Sprintf("%d", result.TotalQueries)},
		{"Failed Queries", fmt.Sprintf("%d", result.Failed)},
		{"Total Duration", result.TotalDuration.String()},
		{"Average Duration", result.AvgDuration.String()},
		{"Queries/Second", fmt.Sprintf("%.2f", result.QueriesPerSec)},
		{"Min Duration", result.MinDuration.String()},
		{"Max Duration", result.MaxDuration.String()},
		{"Total Results", fmt.Sprintf("%d", result.TotalResults)},
		{"Avg Results/Query", fmt.Sprintf("%.2f", result.AvgResults)},
		{"Workers Used", fmt.Sprintf("%d", workers)},
		{"CPU Cores", fmt.Sprintf("%d", runtime.NumCPU())},
	}
}

// runBenchmark runs numQueries queries on a worker pool, adding one to done
// per finished query
func runBenchmark(ctx context.Context, name string, query queryFunc, numQueries, workers int, done *atomic.Int64) BenchmarkResult {
	var (
		totalResults atomic.Int64
		failed       atomic.Int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		durations    []time.Duration
		mu           sync.Mutex
	)

	startTime := time.Now()

	// Worker pool
	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(rand.Int63()))

			for range queryCh {
				queryStart := time.Now()
				n, err := query(ctx, r)
				queryDuration := time.Since(queryStart)
				done.Add(1)

				if err != nil {
					failed.Add(1)
					continue
				}
				totalResults.Add(int64(n))

				mu.Lock()
				durations = append(durations, queryDuration)
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}()
	}

	// Send queries
	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	var totalDur, avgDuration time.Duration
	for _, d := range durations {
		totalDur += d
	}
	if len(durations) > 0 {
		avgDuration = totalDur / time.Duration(len(durations))
	}

	return BenchmarkResult{
		QueryType:     name,
		TotalQueries:  numQueries,
		Failed:        failed.Load(),
		TotalDuration: totalDuration,
		AvgDuration:   avgDuration,
		QueriesPerSec: float64(numQueries) / totalDuration.Seconds(),
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults.Load(),
		AvgResults:    float64(totalResults.Load()) / float64(max(numQueries, 1)),
	}
}

func benchmarkMixed(ctx context.Context, queries map[string]queryFunc, numQueries, workers int, done *atomic.Int64) BenchmarkResult {
	// Run 1/3 of each query type
	queriesPerType := numQueries / 3

	combined := BenchmarkResult{QueryType: "mixed", MinDuration: time.Hour}
	for _, name := range []string{"box", "nearest", "tiles"} {
		r := runBenchmark(ctx, name, queries[name], queriesPerType, workers, done)
		combined.TotalQueries += r.TotalQueries
		combined.Failed += r.Failed
		combined.TotalDuration += r.TotalDuration
		combined.TotalResults += r.TotalResults
		combined.MinDuration = min(combined.MinDuration, r.MinDuration)
		combined.MaxDuration = max(combined.MaxDuration, r.MaxDuration)
	}

	if combined.TotalQueries > 0 {
		combined.AvgDuration = combined.TotalDuration / time.Duration(combined.TotalQueries)
		combined.QueriesPerSec = float64(combined.TotalQueries) / combined.TotalDuration.Seconds()
		combined.AvgResults = float64(combined.TotalResults) / float64(combined.TotalQueries)
	}
	return combined
}
