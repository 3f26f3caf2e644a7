package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/sqlstore"
	"github.com/cyrcle/cyrcle-geo/pkg/tilesync"
	"github.com/spf13/cobra"
)

var (
	ledgerPath string
	forceSync  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the spots of an area from the remote store for offline use",
	Long: `Copy every tile covering an area from the remote store (sync.remote) into
the configured local store. Tiles already downloaded are skipped unless --force
is given.`,
}

var syncRectCmd = &cobra.Command{
	Use:   "rect MIN_LON MIN_LAT MAX_LON MAX_LAT",
	Short: "Download the tiles covering a rectangle",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		bl, tr, err := parseRect(args)
		if err != nil {
			return err
		}
		return runSync(cmd.Context(), func(ctx context.Context, s *tilesync.Syncer) (tilesync.Report, error) {
			return s.SyncRectangle(ctx, bl, tr)
		})
	},
}

var syncCircleCmd = &cobra.Command{
	Use:   "circle LON LAT RADIUS_METERS",
	Short: "Download the tiles covering a circle",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		center, radius, err := parseCircle(args)
		if err != nil {
			return err
		}
		return runSync(cmd.Context(), func(ctx context.Context, s *tilesync.Syncer) (tilesync.Report, error) {
			return s.SyncCircle(ctx, center, radius)
		})
	},
}

func init() {
	syncCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "data/tiles.db",
		"SQLite tile ledger, used when the local store is not SQL")
	syncCmd.PersistentFlags().BoolVar(&forceSync, "force", false, "Download tiles even if already present")
	syncCmd.AddCommand(syncRectCmd, syncCircleCmd)
}

func runSync(ctx context.Context, run func(context.Context, *tilesync.Syncer) (tilesync.Report, error)) (err error) {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	remote, err := spotstore.Open(ctx, cfg.Sync.Remote)
	if err != nil {
		return fmt.Errorf("failed to open remote store: %w", err)
	}
	defer closeStore(ctx, logger, remote)

	local, err := spotstore.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	// A snapshot-backed local store writes on close; a failed write must fail the sync
	defer func() {
		if cerr := local.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close local store: %w", cerr))
		}
	}()

	ledger, closeLedger, err := openLedger(ctx, local, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	syncer := tilesync.New(remote, local, ledger, tilesync.Options{
		Concurrency:   cfg.Sync.Concurrency,
		RatePerSecond: cfg.Sync.RatePerSecond,
		Force:         forceSync,
	}, logger)

	start := time.Now()
	report, err := run(ctx, syncer)
	if err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Sync complete in %v", time.Since(start).Round(time.Millisecond)))
	printStat("Tiles", report.Tiles)
	printStat("Skipped", report.Skipped)
	printStat("Downloaded", report.Downloaded)
	printStat("Spots", report.Spots)
	return nil
}

// openLedger reuses a SQL local store as the tile ledger, otherwise opens
// the SQLite file at --ledger.
func openLedger(ctx context.Context, local spotstore.Store, logger *slog.Logger) (tilesync.TileLedger, func(), error) {
	if s, ok := local.(*sqlstore.Store); ok {
		return s, func() {}, nil
	}

	ledger, err := sqlstore.OpenSQLite(ledgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tile ledger: %w", err)
	}
	if err := ledger.InitSchema(ctx); err != nil {
		ledger.Close()
		return nil, nil, err
	}
	logger.Debug("using separate tile ledger", "path", ledgerPath)

	return ledger, func() { closeStore(ctx, logger, ledger) }, nil
}
