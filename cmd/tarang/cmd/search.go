package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/retriever"
	"github.com/tarang-dev/tarang/internal/tarangconfig"
	"github.com/tarang-dev/tarang/internal/tarangerr"
	"github.com/tarang-dev/tarang/internal/tarangindex"
	"github.com/tarang-dev/tarang/pkg/version"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	hops          int
	maxChunks     int
	maxSignatures int
	format        string // "text", "json"
	file          string // seed from a file's chunks instead of a query
	symbol        string // seed from one symbol name instead of a query
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase with graph-augmented retrieval.

BM25 ranks chunks for the query; the symbol graph then widens the hits
by the requested number of hops, returning full code for direct hits
and signatures only for graph neighbors.

Examples:
  tarang search "token refresh handler"
  tarang search "parse manifest" --hops 2 --limit 5
  tarang search --file internal/api/server.go
  tarang search --symbol handleRequest
  tarang search "retry policy" --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" && opts.file == "" && opts.symbol == "" {
				return fmt.Errorf("provide a query, --file, or --symbol")
			}
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVar(&opts.hops, "hops", -1, "Graph expansion depth (default from config)")
	cmd.Flags().IntVarP(&opts.maxChunks, "limit", "n", -1, "Maximum number of chunks returned")
	cmd.Flags().IntVar(&opts.maxSignatures, "max-signatures", -1, "Maximum neighbor signatures collected")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.file, "file", "", "Retrieve all chunks of one file plus their neighborhood")
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "Retrieve one symbol by name plus its neighborhood")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root, err := resolveProjectRoot(".")
	if err != nil {
		return err
	}
	if !indexExists(root) {
		return fmt.Errorf("no index found. Run 'tarang index' first")
	}

	cfg, err := tarangconfig.Load(root)
	if err != nil {
		cfg = tarangconfig.NewConfig()
	}
	ropts := retriever.Options{
		Hops:          cfg.Retrieval.Hops,
		MaxChunks:     cfg.Retrieval.MaxChunks,
		MaxSignatures: cfg.Retrieval.MaxSignatures,
	}
	if opts.hops >= 0 {
		ropts.Hops = opts.hops
	}
	if opts.maxChunks >= 0 {
		ropts.MaxChunks = opts.maxChunks
	}
	if opts.maxSignatures >= 0 {
		ropts.MaxSignatures = opts.maxSignatures
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

	if err := ix.Load(ctx); err != nil {
		return err
	}

	retr := retriever.New(ix.BM25, ix.Graph)

	var result *retriever.Result
	switch {
	case opts.file != "":
		slog.Info("search_started", slog.String("file", opts.file), slog.Int("hops", ropts.Hops))
		result = retr.RetrieveForFile(opts.file, ropts)
	case opts.symbol != "":
		slog.Info("search_started", slog.String("symbol", opts.symbol), slog.Int("hops", ropts.Hops))
		result, err = retr.RetrieveSymbol(ctx, opts.symbol, ropts)
	default:
		slog.Info("search_started", slog.String("query", query), slog.Int("hops", ropts.Hops))
		result, err = retr.Retrieve(ctx, query, ropts)
	}
	if err != nil {
		// A machine consumer reading JSON from stdout gets the error in
		// the same shape as a result.
		if opts.format == "json" {
			if b, jerr := tarangerr.FormatJSON(err); jerr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			}
		}
		return err
	}
	slog.Info("search_complete",
		slog.Int("chunks", result.Stats.ChunkCount),
		slog.Int("signatures", result.Stats.SignatureCount))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(cmd.OutOrStdout(), result)
}

func printResult(w io.Writer, result *retriever.Result) error {
	if result.Stats.ChunkCount == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	for i, c := range result.Chunks {
		fmt.Fprintf(w, "%d. %s (%s) %s:%d-%d\n", i+1, c.Name, c.Type, c.File, c.LineStart, c.LineEnd)
		for _, line := range strings.Split(c.Content, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
		if gc, ok := result.Graph[c.ID]; ok {
			printRelations(w, gc)
		}
		fmt.Fprintln(w)
	}

	if len(result.Signatures) > 0 {
		fmt.Fprintln(w, "Related symbols:")
		for _, sig := range result.Signatures {
			fmt.Fprintf(w, "   %s (%s) %s - %s\n", sig.Name, sig.Type, sig.File, sig.Signature)
		}
	}
	return nil
}

func printRelations(w io.Writer, gc retriever.GraphContext) {
	rels := []struct {
		label string
		names []string
	}{
		{"calls", gc.Calls},
		{"called by", gc.CalledBy},
		{"inherits", gc.Inherits},
		{"inherited by", gc.InheritedBy},
		{"defines", gc.Defines},
		{"defined in", gc.DefinedIn},
		{"references", gc.References},
		{"referenced by", gc.ReferencedBy},
	}
	for _, rel := range rels {
		if len(rel.names) > 0 {
			fmt.Fprintf(w, "   ↳ %s: %s\n", rel.label, strings.Join(rel.names, ", "))
		}
	}
}
