package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/cache"
	"github.com/snipx-dev/snipx/internal/index"
)

var (
	cleanPython   bool
	cleanIndex    bool
	cleanCompiled bool
	cleanAll      bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the snipx cache",
	Long:  `View and manage cached Python runtimes, the release index and compiled modules.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show cached items",
	RunE:  cacheList,
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached items",
	Long: `Remove cached items. By default, removes compiled modules only.
The snippet database and config file are never removed.

Flags:
    --python     Remove Python runtimes
    --index      Remove index cache (forces re-fetch)
    --compiled   Remove compiled modules
    --all        Remove everything`,
	RunE: cacheClean,
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print cache directory path",
	RunE:  cacheDir,
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force re-fetch of the Python release index",
	RunE:  cacheRefresh,
}

func init() {
	cacheCleanCmd.Flags().BoolVar(&cleanPython, "python", false, "remove Python runtimes")
	cacheCleanCmd.Flags().BoolVar(&cleanIndex, "index", false, "remove index cache")
	cacheCleanCmd.Flags().BoolVar(&cleanCompiled, "compiled", false, "remove compiled modules")
	cacheCleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove everything")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheDirCmd)
	cacheCmd.AddCommand(cacheRefreshCmd)

	rootCmd.AddCommand(cacheCmd)
}

func cacheList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	baseDir, err := cache.Dir()
	if err != nil {
		return err
	}

	if !cache.Exists(baseDir) {
		fmt.Fprintln(out, "Cache is empty")
		return nil
	}

	// Python runtimes
	pythonDir, _ := cache.PythonDir()
	if cache.Exists(pythonDir) {
		fmt.Fprintln(out, "Python Runtimes:")
		entries, _ := os.ReadDir(pythonDir)
		for _, e := range entries {
			if e.IsDir() {
				size := dirSize(filepath.Join(pythonDir, e.Name()))
				fmt.Fprintf(out, "  %s (%s)\n", e.Name(), formatSize(size))
			}
		}
		fmt.Fprintln(out)
	}

	// Compiled modules
	compiledDir, _ := cache.CompileCacheDir()
	if cache.Exists(compiledDir) {
		fmt.Fprintf(out, "Compiled Modules: %s\n\n", formatSize(dirSize(compiledDir)))
	}

	// Snippet database
	dbPath, _ := cache.DatabasePath()
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Fprintf(out, "Snippets: %s (%s)\n\n", dbPath, formatSize(info.Size()))
	}

	// Index
	indexDir, _ := cache.IndexDir()
	if cache.Exists(indexDir) {
		printIndexAge(out, indexDir, time.Now())
	}

	return nil
}

func printIndexAge(w io.Writer, indexDir string, now time.Time) {
	data, err := os.ReadFile(filepath.Join(indexDir, "fetched_at"))
	if err != nil {
		return
	}
	if t, err := time.Parse(time.RFC3339, string(data)); err == nil {
		fmt.Fprintf(w, "Index: fetched %s ago\n", formatDuration(now.Sub(t)))
	}
}

// cleanTargets maps the clean flags to cache targets. No flags means
// compiled modules only.
func cleanTargets() []string {
	if cleanAll {
		return []string{"all"}
	}

	var targets []string
	if cleanPython {
		targets = append(targets, "python")
	}
	if cleanIndex {
		targets = append(targets, "index")
	}
	if cleanCompiled {
		targets = append(targets, "compiled")
	}
	if len(targets) == 0 {
		targets = []string{"compiled"}
	}
	return targets
}

var cleanMessages = map[string]string{
	"all":      "Removed all cache",
	"python":   "Removed Python runtimes",
	"index":    "Removed index cache",
	"compiled": "Removed compiled modules",
}

func cacheClean(cmd *cobra.Command, args []string) error {
	for _, target := range cleanTargets() {
		if err := cache.Clean(target); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), cleanMessages[target])
		}
	}
	return nil
}

func cacheDir(cmd *cobra.Command, args []string) error {
	dir, err := cache.Dir()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

func cacheRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Python.BundleURL != "" {
		return fmt.Errorf("python.bundle_url is set; there is no index to refresh")
	}

	idx, err := index.Refresh(ctx, cfg.Python.IndexURL)
	if err != nil {
		return err
	}

	if latest := index.LatestVersion(idx.Versions()); latest != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Index refreshed: %d releases, latest Python %s\n", len(idx.Releases), latest)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Index refreshed: no releases found")
	}
	return nil
}

func dirSize(path string) int64 {
	var size int64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d days", int(d.Hours()/24))
}
