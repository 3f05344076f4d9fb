package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/config"
	"github.com/snipx-dev/snipx/internal/pyruntime"
	"github.com/snipx-dev/snipx/internal/sandbox"
	"github.com/snipx-dev/snipx/internal/store"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "snipx",
	Short: "Store code snippets and run them in a sandbox",
	Long: `snipx keeps a library of code snippets and runs them in an embedded
sandbox: JavaScript in-process, Python on a WebAssembly runtime fetched on
first use, and build instructions for C++ and Java.

Examples:
  snipx hello.js               Run a snippet file
  snipx new --title Hi hi.py   Store a snippet
  snipx list                   List stored snippets
  snipx run 3                  Run stored snippet 3
  snipx serve                  Start the HTTP API`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		// A snippet file (or "-") as the first arg runs it.
		if args[0] == "-" || isSnippetFile(args[0]) {
			return runSnippet(cmd, args)
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress snipx output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.snipx/config.toml)")
	addRunFlags(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func isSnippetFile(path string) bool {
	_, ok := sandbox.LanguageForExtension(filepath.Ext(path))
	return ok
}

// newLogger builds the diagnostic logger on stderr.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbose:
		level = zerolog.DebugLevel
	case quiet:
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func showProgress() bool {
	return !quiet && !verbose
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store.SQLite, error) {
	logger.Debug().Str("path", cfg.Database.Path).Msg("opening snippet database")
	st, err := store.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snippet database: %w", err)
	}
	return st, nil
}

// newProvisioner builds the Python runtime provisioner from config. A
// download progress bar is drawn on stderr when showProgress is set.
func newProvisioner(cfg *config.Config, logger zerolog.Logger, showProgress bool) *pyruntime.Provisioner {
	return pyruntime.NewProvisioner(pyruntime.Options{
		Version:      cfg.Python.Version,
		IndexURL:     cfg.Python.IndexURL,
		BundleURL:    cfg.Python.BundleURL,
		AllowEnv:     cfg.Python.AllowEnv,
		ShowProgress: showProgress,
	}, logger)
}

// newSandbox wires the strategy registry and the lazily provisioned Python
// loader. Console writes that escape a run are logged.
func newSandbox(cfg *config.Config, logger zerolog.Logger, showProgress bool) (*sandbox.Registry, *sandbox.Loader, error) {
	loader := sandbox.NewLoader("python", newProvisioner(cfg, logger, showProgress), logger)
	registry, err := sandbox.NewDefaultRegistry(
		sandbox.LogConsole{Logger: logger.With().Str("component", "console").Logger()},
		loader,
		sandbox.Limits{Timeout: cfg.Execution.Timeout.Duration},
	)
	if err != nil {
		return nil, nil, err
	}
	return registry, loader, nil
}
