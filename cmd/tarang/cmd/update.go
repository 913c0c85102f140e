package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/tarangindex"
	"github.com/tarang-dev/tarang/pkg/version"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [path]",
		Short: "Incrementally refresh the project index",
		Long: `Refresh the project index against the current source tree.

Loads the persisted index, diffs every scanned file's content hash
against the manifest, and re-chunks only what changed. Deleted files
are dropped from the lexical index and the symbol graph. When no
usable index exists, this falls back to a full build.

Examples:
  tarang update
  tarang update ./services/api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runUpdate(ctx, cmd, path)
		},
	}

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, path string) error {
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
	if err := ix.Load(ctx); err != nil {
		return err
	}
	if err := ix.Update(ctx); err != nil {
		return err
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	stats := ix.BM25.Stats()
	slog.Info("update_complete",
		slog.String("root", root),
		slog.Int("files", len(ix.Manifest.Paths())),
		slog.Int("chunks", stats.TotalChunks),
		slog.Duration("elapsed", elapsed))

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Index up to date: %d files (%d chunks, %d symbols) in %s\n",
		len(ix.Manifest.Paths()), stats.TotalChunks, ix.Graph.Len(), elapsed)
	return err
}
