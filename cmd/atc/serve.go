package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxonary/ai-trend-clustering/internal/projection"
	"github.com/maxonary/ai-trend-clustering/internal/runstore"
	"github.com/maxonary/ai-trend-clustering/internal/server"
	"github.com/maxonary/ai-trend-clustering/internal/trend"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr     string
	serveReadOnly bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8501)")
	serveCmd.Flags().BoolVar(&serveReadOnly, "read-only", false, "Disable launching new runs from the browser")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interactive explorer",
	Long: `Serve the explorer for the runs under the runs root.

The page lets you pick a run, tune the map's neighbourhood size and
minimum distance, change the number of trend windows, and launch new
runs. Launching runs needs Ollama; use --read-only to serve without it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	store := newStore()
	deps := server.Deps{
		Loader:     runstore.NewLoader(store, cfg.CacheEntries, logger),
		Projector:  projection.NewProjector(projection.UMAPReducer{}, cfg.CacheEntries, projection.WithLogger(logger)),
		Aggregator: trend.NewAggregator(cfg.CacheEntries, logger),
		Logger:     logger,
	}
	if !serveReadOnly {
		provider := newOllamaProvider()
		mustValidateOllama(ctx, provider)
		deps.Runner = newRunner(provider, nil)
		deps.Runner.Store = store
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if humanOutput {
		fmt.Fprintf(os.Stderr, "Explorer listening on http://%s (runs in %s)\n", addr, store.Root)
	} else {
		outputJSON(map[string]string{"status": "listening", "addr": addr, "runs_root": store.Root})
	}
	logger.Info("server started", "addr", addr, "runs_root", store.Root, "read_only", serveReadOnly)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			exitWithError(ExitError, "server: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
