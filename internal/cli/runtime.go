package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/pyruntime"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Inspect or install the Python runtime",
}

var runtimeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which Python runtime would be used and whether it is cached",
	Args:  cobra.NoArgs,
	RunE:  runtimeStatus,
}

var runtimeInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and compile the Python runtime ahead of first use",
	Args:  cobra.NoArgs,
	RunE:  runtimeInstall,
}

func init() {
	runtimeCmd.AddCommand(runtimeStatusCmd)
	runtimeCmd.AddCommand(runtimeInstallCmd)
	rootCmd.AddCommand(runtimeCmd)
}

func runtimeStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := newProvisioner(cfg, newLogger(), false).Locate(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Version != nil {
		fmt.Fprintf(out, "Python:  %s (constraint %q)\n", res.Version, cfg.Python.Version)
	} else {
		fmt.Fprintln(out, "Python:  custom bundle")
	}
	fmt.Fprintf(out, "Source:  %s\n", res.Release.URL)
	fmt.Fprintf(out, "Path:    %s\n", res.Path)
	if res.Cached {
		fmt.Fprintf(out, "Status:  installed (%s)\n", formatSize(dirSize(res.Path)))
	} else {
		fmt.Fprintln(out, "Status:  not installed")
	}
	return nil
}

func runtimeInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	interp, err := newProvisioner(cfg, newLogger(), showProgress()).Provision(ctx)
	if err != nil {
		return err
	}
	if closer, ok := interp.(*pyruntime.Interpreter); ok {
		defer closer.Close(ctx)
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), "Python runtime ready")
	}
	return nil
}
