// Command rookctl is a cobra-based operator CLI (§12) for scripting
// against a local Rook store without running the server: serve, add,
// search, export, import, configure, in the same flag/subcommand idiom as
// the vector-store teacher's own cmd/sqvect.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rookmem/rook/pkg/config"
	"github.com/rookmem/rook/pkg/exportimport"
	"github.com/rookmem/rook/pkg/facade"
	"github.com/rookmem/rook/pkg/httpapi"
	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/metrics"
	"github.com/rookmem/rook/pkg/rmodel"
	"github.com/rookmem/rook/pkg/storesqlite"
)

var (
	dataDir string
	cfgFile string

	userID, agentID, runID string
)

var rootCmd = &cobra.Command{
	Use:   "rookctl",
	Short: "Operator CLI for the Rook cognitive memory layer",
	Long:  "rookctl scripts against a local Rook store directly, without running the REST server.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Rook data directory (default: $ROOK_DATA_DIR or ~/.rook)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "scope: user id")
	rootCmd.PersistentFlags().StringVar(&agentID, "agent", "", "scope: agent id")
	rootCmd.PersistentFlags().StringVar(&runID, "run", "", "scope: run id")

	rootCmd.AddCommand(serveCmd, addCmd, searchCmd, exportCmd, importCmd, configureCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.MemoryConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, cfg.Validate()
}

func openFacade(ctx context.Context, cfg config.MemoryConfig, logger logging.Logger) (*facade.Facade, *storesqlite.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storesqlite.Open(ctx, filepath.Join(cfg.DataDir, "rook.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	f := facade.New(store, nil, nil, store, store, store, nil, nil, logger)
	f.Config.NeighbourCandidates = cfg.NeighbourCandidates
	f.Config.MaxIndexRetries = cfg.MaxIndexRetries
	return f, store, nil
}

func scope() rmodel.Scope {
	return rmodel.Scope{UserID: userID, AgentID: agentID, RunID: runID}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST server (equivalent to rookd)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.NewZap()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		f, store, err := openFacade(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		mcol := metrics.New()
		router := httpapi.NewRouter(f, logger, httpapi.Options{
			RequireAuth: cfg.RequireAuth,
			APIKey:      cfg.APIKey,
			Version:     "rookctl-serve",
			Metrics:     mcol,
		})
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		logger.Info("rookctl serve listening", "addr", addr)
		return http.ListenAndServe(addr, router)
	},
}

var inferFacts bool

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a memory (or infer distinct facts from text)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.NewStd(logging.LevelWarn)
		ctx := cmd.Context()
		f, store, err := openFacade(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := f.Add(ctx, args[0], scope(), inferFacts)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search over memories in a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.NewStd(logging.LevelWarn)
		ctx := cmd.Context()
		f, store, err := openFacade(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := f.Search(ctx, args[0], scope(), searchLimit, nil, 0, false)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a scope's memories to a JSONL file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.NewStd(logging.LevelWarn)
		ctx := cmd.Context()
		_, store, err := openFacade(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		out := os.Stdout
		if exportPath != "" {
			f, err := os.Create(exportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			stats, err := exportimport.ExportJSONL(ctx, store, scope(), f)
			if err != nil {
				return err
			}
			return printJSON(stats)
		}
		stats, err := exportimport.ExportJSONL(ctx, store, scope(), out)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr)
		return printJSON(stats)
	},
}

var importPath string
var importMem0 bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import memories from a JSONL file (native or mem0 format)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importPath == "" {
			return fmt.Errorf("--file is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.NewStd(logging.LevelWarn)
		ctx := cmd.Context()
		_, store, err := openFacade(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		in, err := os.Open(importPath)
		if err != nil {
			return err
		}
		defer in.Close()

		var report exportimport.MigrationReport
		if importMem0 {
			report, err = exportimport.ImportMem0JSONL(ctx, store, in)
		} else {
			report, err = exportimport.ImportJSONL(ctx, store, in)
		}
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var (
	cfgNeighbourCandidates int
	cfgMaxIndexRetries     int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Print facade tunables (neighbour-candidates, max-index-retries)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := facade.DefaultConfig()
		if cfgNeighbourCandidates > 0 {
			cfg.NeighbourCandidates = cfgNeighbourCandidates
		}
		if cfgMaxIndexRetries > 0 {
			cfg.MaxIndexRetries = cfgMaxIndexRetries
		}
		return printJSON(cfg)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addCmd.Flags().BoolVar(&inferFacts, "infer", true, "extract distinct facts via the LLM capability instead of storing text verbatim")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results")
	exportCmd.Flags().StringVar(&exportPath, "file", "", "output file (default: stdout)")
	importCmd.Flags().StringVar(&importPath, "file", "", "input JSONL file")
	importCmd.Flags().BoolVar(&importMem0, "mem0", false, "input is in mem0 export format")
	configureCmd.Flags().IntVar(&cfgNeighbourCandidates, "neighbour-candidates", 0, "top-k neighbours fetched before gating (default 5)")
	configureCmd.Flags().IntVar(&cfgMaxIndexRetries, "max-index-retries", 0, "index upsert retry attempts (default 3)")
}
