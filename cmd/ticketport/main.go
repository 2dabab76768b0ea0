package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/debug"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/storage/factory"
	"github.com/ticketport/ticketport/internal/telemetry"
)

var (
	configFile  string
	dbPath      string
	backend     string
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	store storage.Storage

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: discover .ticketport/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: .ticketport/ticketport.db)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Storage backend: sqlite, mysql or memory")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "ticketport",
	Short: "ticketport - help-desk export importer",
	Long: `Imports tickets, users and custom fields exported from an external
help-desk platform, reconciling users and field definitions against what is
already stored. Imports are idempotent: re-running one skips what is already
there.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("ticketport version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()

		if configFile != "" {
			config.SetConfigFile(configFile)
		}
		if err := config.Initialize(); err != nil {
			FatalError("%v", err)
		}
		applyFlagOverrides(cmd)

		jsonOutput = config.GetBool("json")
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		debug.SetJSON(jsonOutput)

		if err := telemetry.Init(rootCtx, "ticketport", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				WarnError("failed to close store: %v", err)
			}
			store = nil
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		telemetry.Shutdown(shutdownCtx)
		cancel()

		if rootCancel != nil {
			rootCancel()
		}
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyFlagOverrides copies explicitly set persistent flags over the
// config values they shadow.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		config.Set("db", dbPath)
	}
	if flags.Changed("backend") {
		config.Set("backend", backend)
	}
	if flags.Changed("json") {
		config.Set("json", jsonOutput)
	}
}

// openStore opens the configured backend, creating the SQLite directory on
// first use. The store is closed in PersistentPostRun.
func openStore() storage.Storage {
	if store != nil {
		return store
	}
	if b := config.GetString("backend"); b == "" || b == factory.BackendSQLite {
		if err := ensureDBDir(config.GetString("db")); err != nil {
			FatalError("failed to create database directory: %v", err)
		}
	}

	s, err := factory.NewFromConfig(rootCtx)
	if err != nil {
		FatalErrorWithHint(fmt.Sprintf("failed to open database: %v", err),
			"Check the backend, db and mysql.dsn settings (or --backend/--db)")
	}
	store = telemetry.WrapStorage(s)
	return store
}

func ensureDBDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
