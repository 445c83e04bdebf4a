package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pansave/pansave/internal/config"
	"github.com/pansave/pansave/internal/registry"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagAccount    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// loadedCfg holds the configuration loaded by PersistentPreRunE. The
// config watcher goroutine swaps it while command code reads it, so
// access goes through the atomic pointer.
var loadedCfg atomic.Pointer[config.Config]

// reg resolves accounts to provider adapters. Populated alongside
// loadedCfg.
var reg *registry.Registry

// stopWatch releases the config file watcher, when one was started.
var stopWatch func()

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pansave",
		Short:   "Save cloud-drive share links into your own drive",
		Long:    "pansave copies files from Baidu, Aliyun and Xunlei share links into your own drive account.",
		Version: version,
		// Errors and usage are printed by exitOnError, not by cobra.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if stopWatch != nil {
				stopWatch()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagAccount, "account", "", "account name to act as (default: the account marked default)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newAccountsCmd())
	cmd.AddCommand(newShareCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newSaveCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newRmCmd())

	return cmd
}

// loadConfig loads and validates the config file, then seeds the registry
// with its accounts. A missing file yields defaults so read-only commands
// still work.
func loadConfig() error {
	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	loadedCfg.Store(cfg)

	logger := buildLogger()

	reg = registry.New(logger)
	reg.SetAccounts(cfg.DriveAccounts())

	// A config write while a command runs drops every cached adapter, so
	// credential edits take effect without restarting.
	stop, err := config.Watch(path, logger, func() {
		fresh, err := config.LoadOrDefault(path)
		if err != nil || config.Validate(fresh) != nil {
			logger.Warn("ignoring invalid config change", slog.String("path", path))
			return
		}

		loadedCfg.Store(fresh)
		reg.SetAccounts(fresh.DriveAccounts())
	})
	if err != nil {
		logger.Debug("config watch unavailable", slog.String("error", err.Error()))
	} else {
		stopWatch = stop
	}

	return nil
}

// buildLogger creates an slog.Logger configured by config and CLI flags.
// The config log level provides the baseline; --verbose and --quiet
// override it because CLI flags always win. Timestamps are dropped on
// interactive terminals where they are noise.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if cfg := loadedCfg.Load(); cfg != nil {
		switch cfg.Settings.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}

			return a
		}
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
