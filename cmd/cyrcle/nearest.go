package main

import (
	"fmt"

	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/spf13/cobra"
)

var (
	nearestRef models.Point
	numNearest int
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the closest parking spots to a point",
	Long:  `Run the expanding-radius search against the configured store and print the K closest spots.`,
	RunE:  runNearest,
}

func init() {
	pointFlags(nearestCmd, &nearestRef)
	nearestCmd.Flags().IntVarP(&numNearest, "count", "k", 5, "Number of spots to return")
}

func runNearest(cmd *cobra.Command, args []string) error {
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

	searcher, err := nearest.NewSearcher(cfg.Search, logger)
	if err != nil {
		return err
	}

	spots, stats, err := searcher.FindKClosestWithStats(ctx, nearestRef, numNearest, store)
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("%d closest spots to %.5f, %.5f", numNearest, nearestRef.Lon, nearestRef.Lat))
	for i, s := range spots {
		fmt.Printf("%3d. %s %s %s\n",
			i+1,
			render(statStyle, fmt.Sprintf("%8.0fm", models.Distance(nearestRef, s.Location.Center))),
			s.ID,
			render(dimStyle, s.Caption))
	}
	if len(spots) < numNearest {
		fmt.Println(render(dimStyle, fmt.Sprintf("only %d spots within %.2f degrees", len(spots), stats.FinalRadius)))
	}
	printStat("Iterations", stats.Iterations)
	printStat("Final radius", fmt.Sprintf("%.2f°", stats.FinalRadius))
	printStat("Candidates", stats.Candidates)
	return nil
}
