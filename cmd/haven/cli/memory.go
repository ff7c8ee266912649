package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/felixgeelhaar/haven/internal/memory"
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and seed the conversational memory",
	}
	cmd.AddCommand(newMemoryImportCmd(opts), newMemorySearchCmd(opts), newMemoryStatsCmd(opts))
	return cmd
}

func newMemoryImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [glob...]",
		Short: "Store every paragraph of the matching text files as a memory",
		Long: `Import expands each pattern (** is supported) and stores every blank-line
separated paragraph as one memory. Imported text bypasses the topic gate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var files, stored int
			for _, pattern := range args {
				matches, err := doublestar.FilepathGlob(pattern)
				if err != nil {
					return fmt.Errorf("bad pattern %q: %w", pattern, err)
				}
				for _, path := range matches {
					data, err := os.ReadFile(path) // #nosec G304
					if err != nil {
						return err
					}
					for _, para := range paragraphs(string(data)) {
						if err := app.Memory.Insert(cmd.Context(), para); err != nil {
							return fmt.Errorf("%s: %w", path, err)
						}
						stored++
					}
					files++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d memories from %d files\n", stored, files)
			return nil
		},
	}
}

// paragraphs splits text on blank lines and drops empty pieces.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newMemorySearchCmd(opts *rootOptions) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List the memories closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			matches, err := app.Memory.SearchScored(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "%.3f  %s\n", m.Score, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "limit", "k", 3, "Number of memories to return")
	return cmd
}

func newMemoryStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the memory and the embedding cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			mc := app.Config.Memory
			fmt.Fprintf(out, "records:   %d\n", app.Memory.Len())
			fmt.Fprintf(out, "dimension: %d\n", app.Memory.Dim())
			fmt.Fprintf(out, "backend:   %s (%s)\n", mc.Backend, mc.Path)
			fmt.Fprintf(out, "index:     %s\n", mc.Index)
			if c, ok := app.Embedder.(*memory.CachedEmbedder); ok {
				s := c.Stats()
				fmt.Fprintf(out, "cache:     %d hits, %d misses\n", s.Hits, s.Misses)
			}
			return nil
		},
	}
}
