package main

import (
	"fmt"
	"strconv"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
	"github.com/spf13/cobra"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Map areas onto the tile grid",
}

var tilesRectCmd = &cobra.Command{
	Use:   "rect MIN_LON MIN_LAT MAX_LON MAX_LAT",
	Short: "List the tiles covering a rectangle",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		bl, tr, err := parseRect(args)
		if err != nil {
			return err
		}
		tiles, err := tile.TilesCoveringRectangle(bl, tr)
		if err != nil {
			return err
		}
		printTiles(tiles)
		return nil
	},
}

var tilesCircleCmd = &cobra.Command{
	Use:   "circle LON LAT RADIUS_METERS",
	Short: "List the tiles covering a circle",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		center, radius, err := parseCircle(args)
		if err != nil {
			return err
		}
		tiles, err := tile.TilesCoveringCircle(center, radius)
		if err != nil {
			return err
		}
		printTiles(tiles)
		return nil
	},
}

func init() {
	tilesCmd.AddCommand(tilesRectCmd, tilesCircleCmd)
}

func printTiles(tiles []tile.Tile) {
	printTitle(fmt.Sprintf("%d tiles", len(tiles)))
	for _, t := range tiles {
		fmt.Printf("%s %s\n", t.ID(), render(dimStyle, t.String()))
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseRect(args []string) (models.Point, models.Point, error) {
	v, err := parseFloats(args)
	if err != nil {
		return models.Point{}, models.Point{}, err
	}
	return models.Point{Lon: v[0], Lat: v[1]}, models.Point{Lon: v[2], Lat: v[3]}, nil
}

func parseCircle(args []string) (models.Point, float64, error) {
	v, err := parseFloats(args)
	if err != nil {
		return models.Point{}, 0, err
	}
	return models.Point{Lon: v[0], Lat: v[1]}, v[2], nil
}
