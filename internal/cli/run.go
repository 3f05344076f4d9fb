package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/config"
	"github.com/snipx-dev/snipx/internal/metadata"
	"github.com/snipx-dev/snipx/internal/sandbox"
)

var (
	runLang    string
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <id|file|->",
	Short: "Run a stored snippet or a snippet file",
	Long: `Run a snippet in the sandbox and print its output.

The argument is a stored snippet id, a file path, or "-" for stdin. A file
can declare its title and language in a snipx comment block:

    # snipx
    # title = "Fizz buzz"
    # language = "python"

Without a header the language follows the file extension. Stored snippets
run as JavaScript unless --lang says otherwise.

Python snippets provision the Python runtime on first use.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippet,
}

var downloadDir string

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Write a stored snippet to a file named after its title",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadSnippet,
}

// addRunFlags registers run flags on the given command.
// Called for both the root command and the run subcommand.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runLang, "lang", "l", "", "language (javascript, python, cpp, java)")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "execution timeout (default from config)")
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)

	downloadCmd.Flags().StringVarP(&runLang, "lang", "l", "", "language that picks the file extension")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", ".", "directory to write to")
	rootCmd.AddCommand(downloadCmd)
}

// snippetSource is the code to run together with the title and language
// it resolved to.
type snippetSource struct {
	title    string
	code     string
	language sandbox.Language
}

// readSnippetFile reads a snippet from path ("-" for stdin) and resolves its
// title and language from the header.
func readSnippetFile(path string, stdin io.Reader) (*snippetSource, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("snippet not found: %s", path)
		}
	}

	meta, err := metadata.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snipx header: %w", err)
	}
	lang, err := meta.ResolveLanguage(path)
	if err != nil {
		return nil, err
	}

	return &snippetSource{
		title:    meta.ResolveTitle(path),
		code:     string(content),
		language: lang,
	}, nil
}

// parseID reports whether arg is a stored snippet id.
func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// overrideLanguage applies --lang on top of a resolved language.
func overrideLanguage(lang sandbox.Language) (sandbox.Language, error) {
	if runLang == "" {
		return lang, nil
	}
	return sandbox.ParseLanguage(runLang)
}

func resolveSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger, arg string, stdin io.Reader) (*snippetSource, error) {
	id, isID := parseID(arg)
	if !isID || fileExists(arg) {
		src, err := readSnippetFile(arg, stdin)
		if err != nil {
			return nil, err
		}
		if src.language, err = overrideLanguage(src.language); err != nil {
			return nil, err
		}
		return src, nil
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	snippet, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lang, err := overrideLanguage(sandbox.LanguageJavaScript)
	if err != nil {
		return nil, err
	}
	return &snippetSource{title: snippet.Title, code: snippet.Code, language: lang}, nil
}

// fileExists reports whether a numeric argument names a file in the
// working directory, which takes precedence over a snippet id.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func runSnippet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTimeout > 0 {
		cfg.Execution.Timeout = config.Duration{Duration: runTimeout}
	}
	logger := newLogger()

	src, err := resolveSource(ctx, cfg, logger, args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	registry, loader, err := newSandbox(cfg, logger, showProgress())
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "[snipx] Running %q as %s\n", src.title, src.language.Label())
	}

	session := sandbox.NewSession(registry, loader, src.title, src.code)
	if err := session.Select(ctx, src.language); err != nil {
		return err
	}

	// A one-shot run waits for the runtime instead of reporting that it is
	// still loading.
	if src.language == sandbox.LanguagePython {
		state, err := loader.Wait(ctx)
		if err != nil {
			return fmt.Errorf("python runtime unavailable: %w", err)
		}
		if state != sandbox.Ready {
			return fmt.Errorf("python runtime unavailable: %s", state)
		}
	}

	if d := cfg.Execution.Timeout.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out, err := session.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func downloadSnippet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	id, ok := parseID(args[0])
	if !ok {
		return fmt.Errorf("invalid snippet id: %s", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	snippet, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	lang, err := overrideLanguage(sandbox.LanguageJavaScript)
	if err != nil {
		return err
	}

	// Export needs no strategies.
	session := sandbox.NewSession(nil, nil, snippet.Title, snippet.Code)
	if err := session.Select(ctx, lang); err != nil {
		return err
	}
	path, err := session.Download(downloadDir)
	if err != nil {
		return fmt.Errorf("failed to write snippet: %w", err)
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
