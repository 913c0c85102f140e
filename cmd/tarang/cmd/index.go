package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/tarangconfig"
	"github.com/tarang-dev/tarang/internal/tarangindex"
	"github.com/tarang-dev/tarang/pkg/version"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build the project index from scratch",
		Long: `Build the full project index: scan the source tree, chunk every
accepted file, and persist the lexical index, symbol graph, and
manifest under <project>/.tarang/index/.

A rebuild replaces any existing index. For a cheap refresh after
editing a few files, use 'tarang update' instead.

Examples:
  tarang index
  tarang index ./services/api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path)
		},
	}

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	root, err := resolveProjectRoot(path)
	if err != nil {
		return err
	}

	ix, err := tarangindex.New(tarangindex.Config{
		RootDir:       root,
		DataDir:       indexDataDir(root),
		TarangVersion: version.Version,
	})
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	start := time.Now()
	if err := ix.Build(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	stats := ix.BM25.Stats()
	slog.Info("index_complete",
		slog.String("root", root),
		slog.Int("files", len(ix.Manifest.Paths())),
		slog.Int("chunks", stats.TotalChunks),
		slog.Int("symbols", ix.Graph.Len()),
		slog.Duration("elapsed", elapsed))

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d chunks, %d symbols) in %s\n",
		len(ix.Manifest.Paths()), stats.TotalChunks, ix.Graph.Len(), elapsed)
	return err
}

// resolveProjectRoot resolves path and walks up to the enclosing project
// root, falling back to the path itself when no root marker is found.
func resolveProjectRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	root, err := tarangconfig.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}
	return root, nil
}

// indexDataDir is where the three persisted index artifacts live.
func indexDataDir(root string) string {
	return filepath.Join(root, ".tarang", "index")
}

// indexExists reports whether a manifest document is already present,
// i.e. whether 'tarang index' has run for this project.
func indexExists(root string) bool {
	_, err := os.Stat(filepath.Join(indexDataDir(root), "manifest.json"))
	return err == nil
}
