package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/server"
)

var (
	serveAddr    string
	servePreload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the snippet API over HTTP",
	Long: `Serve snippets and editor sessions as a JSON API until interrupted.

The listen address comes from --addr, SNIPX_ADDR, or server.addr in the
config file. With --preload the Python runtime is provisioned at startup
instead of when a session first selects Python.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "provision the Python runtime at startup")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, loader, err := newSandbox(cfg, logger, false)
	if err != nil {
		return err
	}
	if servePreload {
		loader.EnsureReady(ctx)
	}

	srv := server.New(st, registry, loader, logger)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return srv.Stop()
}
