package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgops/drbase/internal/config"
	"github.com/pgops/drbase/internal/engine"
	"github.com/pgops/drbase/internal/inventory"
	"github.com/pgops/drbase/internal/producer"
	"github.com/pgops/drbase/internal/remote"
	"github.com/pgops/drbase/internal/runner"
	"github.com/pgops/drbase/internal/store"
	"github.com/pgops/drbase/internal/transfer"
)

var (
	// Global flags
	cfgPath   string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalStore  *store.Store
	globalEngine *engine.Engine
)

// initializeComponents wires the gateway, inventory, producer, transfer, and
// catalog into the engine.
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	run := runner.NewExecRunner()
	gateway := remote.NewGateway(globalCfg.Remote, run, logger)
	inv := inventory.New(gateway, globalCfg.InstanceRoot(), logger)
	prod := producer.New(globalCfg.Postgres, globalCfg.Staging.Dir, run, logger)
	push := transfer.New(
		globalCfg.Transfer,
		globalCfg.Staging,
		globalCfg.Remote.SyncBin,
		globalCfg.InstanceRoot(),
		gateway,
		run,
		logger,
	)

	// The catalog is observability only; a broken database must never block
	// a backup.
	var recorder engine.Recorder
	if dbPath := globalCfg.Catalog.DBPath; dbPath != "" {
		st, err := store.New(dbPath, logger)
		if err != nil {
			logger.Warn("run catalog unavailable, continuing without history", "path", dbPath, "error", err)
		} else {
			globalStore = st
			recorder = st
		}
	}

	globalEngine = engine.New(
		gateway, inv, prod, push, recorder,
		globalCfg.Instance, globalCfg.Retention.Keep, logger,
	)
	return nil
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":       true,
		"version":    true,
		"completion": true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close run catalog", "error", err)
		}
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drbase",
		Short: "Disaster-recovery base backup orchestration for one PostgreSQL instance",
		Long: `drbase pulls a compressed, self-contained base backup from a live
PostgreSQL instance, pushes it to a DR host over ssh/rsync into a
timestamp-named snapshot directory, and expires snapshots beyond the
configured retention count.

It is meant to be invoked from cron; one invocation performs one action
against one instance.`,
		Example: `  drbase backup
  drbase info
  drbase pull-only
  drbase push-only
  drbase expire
  drbase history --limit 10`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			if shouldSkipComponentInit(cmd.Name()) {
				return nil
			}

			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Warn("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "instance", globalCfg.Instance)
			}

			return initializeComponents()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output, failures still print")

	cmd.AddCommand(
		newInfoCmd(),
		newBackupCmd(),
		newPullOnlyCmd(),
		newPushOnlyCmd(),
		newExpireCmd(),
		newHistoryCmd(),
	)

	return cmd
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Quiet mode narrates nothing but failures always surface.
	if quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}
