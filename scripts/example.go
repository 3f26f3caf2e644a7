package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/cyrcle/cyrcle-geo/pkg/rtree"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
)

func main() {
	ctx := context.Background()

	// Create a new spot index
	index := rtree.NewSpotIndex()

	// Sample parking spots around Lausanne
	spots := []*models.Spot{
		{ID: "flon", Caption: "Place de l'Europe", Capacity: 40, Location: models.Location{Center: models.Point{Lon: 6.6305, Lat: 46.5208}}},
		{ID: "gare", Caption: "Gare CFF", Capacity: 120, Location: models.Location{Center: models.Point{Lon: 6.6291, Lat: 46.5168}}},
		{ID: "riponne", Caption: "Place de la Riponne", Capacity: 24, Location: models.Location{Center: models.Point{Lon: 6.6332, Lat: 46.5236}}},
		{ID: "ouchy", Caption: "Ouchy", Capacity: 30, Location: models.Location{Center: models.Point{Lon: 6.6270, Lat: 46.5071}}},
		{ID: "epfl", Caption: "EPFL Rolex", Capacity: 200, Location: models.Location{Center: models.Point{Lon: 6.5668, Lat: 46.5184}}},
		{ID: "unil", Caption: "UNIL Géopolis", Capacity: 80, Location: models.Location{Center: models.Point{Lon: 6.5798, Lat: 46.5220}}},
		{ID: "renens", Caption: "Gare de Renens", Capacity: 60, Location: models.Location{Center: models.Point{Lon: 6.5786, Lat: 46.5372}}},
		{ID: "pully", Caption: "Pully centre", Capacity: 15, Location: models.Location{Center: models.Point{Lon: 6.6614, Lat: 46.5103}}},
	}

	// Index the spots
	if err := index.Insert(spots...); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Indexed %d spots\n\n", index.Count())

	// Example 1: Find spots in the city center (bounding box)
	fmt.Println("=== Spots in the city center (Bounding Box) ===")
	center := models.BoundingBox{
		BottomLeft: models.Point{Lon: 6.62, Lat: 46.51},
		TopRight:   models.Point{Lon: 6.64, Lat: 46.53},
	}

	results, err := index.QueryBox(ctx, center)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d spots in the city center:\n", len(results))
	for _, spot := range results {
		fmt.Printf("  - %s: (%.4f, %.4f)\n", spot.ID, spot.Location.Center.Lon, spot.Location.Center.Lat)
	}

	// Example 2: Find the 3 closest spots to the cathedral
	fmt.Println("\n=== 3 closest spots to the cathedral ===")
	cathedral := models.Point{Lon: 6.6356, Lat: 46.5226}

	searcher, err := nearest.NewSearcher(nearest.DefaultOptions(), nil)
	if err != nil {
		log.Fatal(err)
	}
	closest, err := searcher.FindKClosest(ctx, cathedral, 3, index)
	if err != nil {
		log.Fatal(err)
	}
	for i, spot := range closest {
		fmt.Printf("  %d. %s: %.0f m away\n", i+1, spot.Caption, models.Distance(cathedral, spot.Location.Center))
	}

	// Example 3: Tiles to download for a 3km ride around the station
	fmt.Println("\n=== Tiles covering 3km around the station ===")
	tiles, err := tile.TilesCoveringCircle(spots[1].Location.Center, 3000)
	if err != nil {
		log.Fatal(err)
	}
	for _, t := range tiles {
		fmt.Printf("  - %s\n", t.ID())
	}

	// Save the index
	fmt.Println("\n=== Saving Index ===")
	path := filepath.Join(os.TempDir(), "lausanne.gob.zst")
	if err := index.SaveToFile(path); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Index saved to %s\n", path)

	// Load the index
	fmt.Println("\n=== Loading Index ===")
	newIndex := rtree.NewSpotIndex()
	if err := newIndex.LoadFromFile(path); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Loaded index with %d spots\n", newIndex.Count())
}
