package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cyrcle/cyrcle-geo/internal/config"
	"github.com/cyrcle/cyrcle-geo/internal/logging"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cyrcle",
	Short: "Bicycle parking spot search and tile tooling",
	Long: `Cyrcle finds the closest bicycle parking spots with an expanding-radius
search and maps areas onto the 0.1 degree tile grid used for offline caches.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(seedCmd, nearestCmd, tilesCmd, syncCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err.Error()))
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger for a command
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func closeStore(ctx context.Context, logger *slog.Logger, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close store", "error", err)
	}
}

func pointFlags(cmd *cobra.Command, p *models.Point) {
	cmd.Flags().Float64Var(&p.Lon, "lon", 0, "Longitude of the reference point")
	cmd.Flags().Float64Var(&p.Lat, "lat", 0, "Latitude of the reference point")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("lat")
}
