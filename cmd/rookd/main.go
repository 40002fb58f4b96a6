// Command rookd is the REST server binary (spec §6, §12): it loads
// MemoryConfig, opens the SQLite store, wires a Facade, and serves
// pkg/httpapi's router.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rookmem/rook/pkg/config"
	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/httpapi"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/metrics"
	"github.com/rookmem/rook/pkg/storesqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	yamlPath := os.Getenv("ROOK_CONFIG_FILE")
	cfg, err := config.Load(yamlPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewZap()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(cfg.DataDir, "rook.db")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storesqlite.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// No concrete Embed/Llm/Reranker provider is wired here: spec §1 treats
	// them as pluggable capabilities supplied by the embedding caller, not
	// something this module implements. A deployment that wants semantic
	// dedup, LLM fact extraction, or dense retrieval plugs one in by
	// constructing its own facade.Facade with these fields set; rookd as
	// shipped runs the ingestion/retrieval pipeline in its degraded,
	// lexical-and-keyword-only mode.
	f := facade.New(store, nil, nil, store, store, store, nil, nil, logger)
	f.Config.NeighbourCandidates = cfg.NeighbourCandidates
	f.Config.MaxIndexRetries = cfg.MaxIndexRetries

	mcol := metrics.New()

	router := httpapi.NewRouter(f, logger, httpapi.Options{
		RequireAuth: cfg.RequireAuth,
		APIKey:      cfg.APIKey,
		Version:     version,
		Metrics:     mcol,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rookd listening", "addr", addr, "data_dir", cfg.DataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"
