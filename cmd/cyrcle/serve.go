package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyrcle/cyrcle-geo/internal/api"
	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the spot search and tile API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := spotstore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	// The memory store writes its snapshot on close, after the server is down
	defer closeStore(context.Background(), logger, store)

	searcher, err := nearest.NewSearcher(cfg.Search, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(cfg.Server.Addr, api.NewHandler(store, searcher, logger))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
