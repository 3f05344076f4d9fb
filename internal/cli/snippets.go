package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipx-dev/snipx/internal/store"
)

var snippetTitle string

var newCmd = &cobra.Command{
	Use:   "new [file|-]",
	Short: "Store a new snippet",
	Long: `Store a snippet read from a file, or from stdin when the file is "-" or
omitted. The title comes from --title, then the snipx header, then the file
name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: newSnippet,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored snippets, most recently updated first",
	Args:    cobra.NoArgs,
	RunE:    listSnippets,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored snippet's code",
	Args:  cobra.ExactArgs(1),
	RunE:  showSnippet,
}

var editCmd = &cobra.Command{
	Use:   "edit <id> [file|-]",
	Short: "Replace a stored snippet's code",
	Long: `Replace a stored snippet's code with the contents of a file, or stdin when
the file is "-" or omitted. The title is kept unless --title is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: editSnippet,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored snippet",
	Args:    cobra.ExactArgs(1),
	RunE:    deleteSnippet,
}

func init() {
	newCmd.Flags().StringVarP(&snippetTitle, "title", "t", "", "snippet title")
	editCmd.Flags().StringVarP(&snippetTitle, "title", "t", "", "new snippet title")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}

// withStore loads config, opens the snippet database and runs fn against it.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, st)
}

func fileArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "-"
}

func newSnippet(cmd *cobra.Command, args []string) error {
	src, err := readSnippetFile(fileArg(args, 0), cmd.InOrStdin())
	if err != nil {
		return err
	}
	title := src.title
	if snippetTitle != "" {
		title = snippetTitle
	}

	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		id, err := st.Create(ctx, title, src.code)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Created snippet %d\n", id)
		}
		return nil
	})
}

func listSnippets(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		snippets, err := st.List(ctx)
		if err != nil {
			return err
		}
		if len(snippets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No snippets")
			return nil
		}
		return printSnippets(cmd.OutOrStdout(), snippets, time.Now())
	})
}

func printSnippets(w io.Writer, snippets []store.Snippet, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPDATED\tPREVIEW")
	for _, sn := range snippets {
		fmt.Fprintf(tw, "%d\t%s\t%s ago\t%s\n",
			sn.ID, sn.Title, formatDuration(now.Sub(sn.UpdatedAt)), singleLine(sn.Preview()))
	}
	return tw.Flush()
}

// singleLine folds whitespace so a preview fits one table row.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func showSnippet(cmd *cobra.Command, args []string) error {
	id, ok := parseID(args[0])
	if !ok {
		return fmt.Errorf("invalid snippet id: %s", args[0])
	}

	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		snippet, err := st.Get(ctx, id)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "[snipx] %s (updated %s)\n", snippet.Title, snippet.UpdatedAt.Format(time.RFC3339))
		}
		_, err = io.WriteString(cmd.OutOrStdout(), snippet.Code)
		return err
	})
}

func editSnippet(cmd *cobra.Command, args []string) error {
	id, ok := parseID(args[0])
	if !ok {
		return fmt.Errorf("invalid snippet id: %s", args[0])
	}
	src, err := readSnippetFile(fileArg(args, 1), cmd.InOrStdin())
	if err != nil {
		return err
	}

	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		// An empty title keeps the stored one.
		if err := st.Update(ctx, id, src.code, snippetTitle); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Updated snippet %d\n", id)
		}
		return nil
	})
}

func deleteSnippet(cmd *cobra.Command, args []string) error {
	id, ok := parseID(args[0])
	if !ok {
		return fmt.Errorf("invalid snippet id: %s", args[0])
	}

	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		if err := st.Delete(ctx, id); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted snippet %d\n", id)
		}
		return nil
	})
}
