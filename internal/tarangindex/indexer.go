package tarangindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/tarang-dev/tarang/internal/bm25"
	"github.com/tarang-dev/tarang/internal/chunk"
	"github.com/tarang-dev/tarang/internal/graph"
	"github.com/tarang-dev/tarang/internal/manifest"
	"github.com/tarang-dev/tarang/internal/scanner"
	"github.com/tarang-dev/tarang/internal/tarangerr"
)

const (
	bm25BlobName = "bm25.blob"
	graphDocName = "graph.json"
	manifestName = "manifest.json"
	lockName     = ".lock"

	// lockRetryDelay is the interval at which TryLockContext polls the
	// index directory's lock file; lockTimeout is how long it keeps
	// trying before giving up.
	lockRetryDelay = 50 * time.Millisecond
	lockTimeout    = 5 * time.Second

	// maxChunkWorkers caps the chunking fan-out; past a handful of
	// workers a full build is disk-bound, not parse-bound.
	maxChunkWorkers = 4
)

// Config configures a new Indexer.
type Config struct {
	// RootDir is the project root to scan.
	RootDir string
	// DataDir is where the three persisted artifacts (and the lock file)
	// live. Created if missing.
	DataDir string
	// TarangVersion is stamped into the manifest document.
	TarangVersion string
}

// Indexer orchestrates the scanner, chunker, lexical index, and symbol
// graph into the filesystem-backed, incrementally-updatable project
// index: per-file index/remove methods, slog-based degradation on
// per-file errors, and a sorted deterministic change list.
type Indexer struct {
	rootDir       string
	dataDir       string
	tarangVersion string

	scan    *scanner.Scanner
	chunker *chunk.Service
	lock    *flock.Flock

	BM25     bm25.Index
	Graph    *graph.Graph
	Manifest *manifest.Manifest
}

// New creates an Indexer. It does not scan or touch disk beyond creating
// cfg.DataDir; call Build or Load next.
func New(cfg Config) (*Indexer, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("tarangindex: DataDir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("tarangindex: failed to create data dir: %w", err)
	}

	idx, err := bm25.New(bm25.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("tarangindex: failed to create bm25 index: %w", err)
	}

	return &Indexer{
		rootDir:       cfg.RootDir,
		dataDir:       cfg.DataDir,
		tarangVersion: cfg.TarangVersion,
		scan:          scanner.New(),
		chunker:       chunk.NewService(),
		lock:          flock.New(filepath.Join(cfg.DataDir, lockName)),
		BM25:          idx,
		Graph:         graph.New(),
		Manifest:      manifest.New(cfg.TarangVersion),
	}, nil
}

// Close releases the chunker's parser resources and the lexical index.
func (ix *Indexer) Close() error {
	ix.chunker.Close()
	return ix.BM25.Close()
}

func (ix *Indexer) bm25Path() string     { return filepath.Join(ix.dataDir, bm25BlobName) }
func (ix *Indexer) graphPath() string    { return filepath.Join(ix.dataDir, graphDocName) }
func (ix *Indexer) manifestPath() string { return filepath.Join(ix.dataDir, manifestName) }

// withWriteLock serializes full builds and incremental updates across
// every process sharing this data directory - the index is strictly
// single-writer.
func (ix *Indexer) withWriteLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := ix.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return tarangerr.Wrap(tarangerr.ErrTimeout, err)
	}
	if !locked {
		return tarangerr.New(tarangerr.ErrTimeout, "index directory is locked by another process", nil)
	}
	defer func() { _ = ix.lock.Unlock() }()

	return fn()
}

// Build performs a full index build: scan every accepted file, chunk
// it, add its symbols to the graph, build BM25 from the resulting chunk
// set, and persist all three artifacts.
func (ix *Indexer) Build(ctx context.Context) error {
	return ix.withWriteLock(ctx, func() error { return ix.buildLocked(ctx) })
}

// chunkedFile is one fully chunked file, handed from a build worker to
// the accumulation step.
type chunkedFile struct {
	file   *scanner.FileInfo
	hash   string
	result *chunk.Result
}

func (ix *Indexer) buildLocked(ctx context.Context) error {
	results, err := ix.scan.Scan(ctx, &scanner.ScanOptions{RootDir: ix.rootDir})
	if err != nil {
		return fmt.Errorf("tarangindex: scan failed: %w", err)
	}

	// Chunking is fanned out across workers, each with its own chunker
	// instance (a parser must not be shared across goroutines). Workers
	// drain the scan channel; chunked files funnel into one collector.
	workers := runtime.GOMAXPROCS(0)
	if workers > maxChunkWorkers {
		workers = maxChunkWorkers
	}
	chunked := make(chan chunkedFile, workers)

	grp, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		grp.Go(func() error {
			chunker := chunk.NewService()
			defer chunker.Close()
			for res := range results {
				if res.Error != nil {
					slog.Warn("scan error", slog.String("error", res.Error.Error()))
					continue
				}
				file := res.File

				content, err := os.ReadFile(file.AbsPath)
				if err != nil {
					slog.Warn("unreadable file skipped", slog.String("path", file.Path), slog.String("error", err.Error()))
					continue
				}

				result, err := chunker.Chunk(gctx, &chunk.FileInput{Path: file.Path, Content: content, Language: file.Language})
				if err != nil {
					slog.Warn("chunk failed", slog.String("path", file.Path), slog.String("error", err.Error()))
					continue
				}
				if len(result.Chunks) == 0 {
					continue
				}

				select {
				case chunked <- chunkedFile{file: file, hash: chunk.ContentHash(string(content)), result: result}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = grp.Wait()
		close(chunked)
	}()

	m := manifest.New(ix.tarangVersion)
	g := graph.New()
	var allChunks []*chunk.Chunk

	for cf := range chunked {
		chunkIDs := make([]string, 0, len(cf.result.Chunks))
		for _, c := range cf.result.Chunks {
			allChunks = append(allChunks, c)
			chunkIDs = append(chunkIDs, c.ID)
		}
		symbolIDs := make([]string, 0, len(cf.result.Symbols))
		for _, sym := range cf.result.Symbols {
			g.AddSymbol(sym)
			symbolIDs = append(symbolIDs, sym.ID)
		}

		m.Set(cf.file.Path, manifest.FileEntry{
			Hash:      cf.hash,
			ModTime:   cf.file.ModTime,
			ChunkIDs:  chunkIDs,
			SymbolIDs: symbolIDs,
		})
	}
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("tarangindex: chunking failed: %w", err)
	}

	if err := ix.BM25.Build(ctx, allChunks); err != nil {
		return fmt.Errorf("tarangindex: bm25 build failed: %w", err)
	}
	m.Touch(time.Now())

	ix.Manifest = m
	ix.Graph = g

	return ix.persist()
}

// Load opens a previously built index from disk. A missing or
// schema-incompatible manifest, or an unreadable BM25 blob, falls back
// to a full build; a missing or corrupt graph document is tolerated and
// the graph starts empty.
func (ix *Indexer) Load(ctx context.Context) error {
	m, err := manifest.Load(ix.manifestPath())
	if err != nil {
		slog.Info("no manifest found, running full build", slog.String("error", err.Error()))
		return ix.Build(ctx)
	}
	if m.SchemaVersion != manifest.Version {
		slog.Warn("manifest schema version mismatch, running full build",
			slog.Int("found", m.SchemaVersion), slog.Int("want", manifest.Version))
		return ix.Build(ctx)
	}

	if err := ix.BM25.Load(ix.bm25Path()); err != nil {
		slog.Warn("bm25 blob unreadable, running full build", slog.String("error", err.Error()))
		return ix.Build(ctx)
	}

	g := graph.New()
	if err := g.Load(ix.graphPath()); err != nil {
		slog.Warn("graph document missing or corrupt, continuing without it", slog.String("error", err.Error()))
		g = graph.New()
	}

	ix.Manifest = m
	ix.Graph = g
	return nil
}

// Update performs an incremental update:
// rescan, diff against the manifest by content hash, and apply only the
// changed and deleted files.
func (ix *Indexer) Update(ctx context.Context) error {
	return ix.withWriteLock(ctx, func() error { return ix.updateLocked(ctx) })
}

func (ix *Indexer) updateLocked(ctx context.Context) error {
	results, err := ix.scan.Scan(ctx, &scanner.ScanOptions{RootDir: ix.rootDir})
	if err != nil {
		return fmt.Errorf("tarangindex: scan failed: %w", err)
	}

	seen := make(map[string]bool)
	content := make(map[string][]byte)
	files := make(map[string]*scanner.FileInfo)
	var changed []string

	for res := range results {
		if res.Error != nil {
			slog.Warn("scan error", slog.String("error", res.Error.Error()))
			continue
		}
		file := res.File
		seen[file.Path] = true
		files[file.Path] = file

		data, err := os.ReadFile(file.AbsPath)
		if err != nil {
			slog.Warn("unreadable file skipped", slog.String("path", file.Path), slog.String("error", err.Error()))
			continue
		}
		content[file.Path] = data

		entry, ok := ix.Manifest.Get(file.Path)
		if !ok || entry.Hash != chunk.ContentHash(string(data)) {
			changed = append(changed, file.Path)
		}
	}

	var deleted []string
	for _, path := range ix.Manifest.Paths() {
		if !seen[path] {
			deleted = append(deleted, path)
		}
	}

	// Deterministic processing order: deletions first, then changes, each
	// sorted lexically, so re-running an update against unchanged state
	// is a no-op regardless of filesystem walk order.
	sort.Strings(deleted)
	sort.Strings(changed)

	for _, path := range deleted {
		ix.removeFile(path)
	}
	for _, path := range changed {
		if err := ix.reindexFile(ctx, path, files[path], content[path]); err != nil {
			slog.Warn("failed to reindex file", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	ix.Manifest.Touch(time.Now())
	return ix.persist()
}

// removeFile drops a deleted file's chunks from BM25, its symbols from
// the graph, and its manifest entry.
func (ix *Indexer) removeFile(path string) {
	entry, ok := ix.Manifest.Get(path)
	if !ok {
		return
	}
	ix.Graph.RemoveFile(path)
	if err := ix.BM25.RemoveChunks(context.Background(), entry.ChunkIDs); err != nil {
		slog.Warn("failed to remove chunks", slog.String("path", path), slog.String("error", err.Error()))
	}
	ix.Manifest.Delete(path)
}

// reindexFile re-chunks a new or modified file, removing any chunks and
// symbols it previously contributed first.
func (ix *Indexer) reindexFile(ctx context.Context, path string, file *scanner.FileInfo, data []byte) error {
	if entry, ok := ix.Manifest.Get(path); ok {
		ix.Graph.RemoveFile(path)
		if err := ix.BM25.RemoveChunks(ctx, entry.ChunkIDs); err != nil {
			return err
		}
	}

	result, err := ix.chunker.Chunk(ctx, &chunk.FileInput{Path: path, Content: data, Language: file.Language})
	if err != nil {
		return err
	}
	if len(result.Chunks) == 0 {
		ix.Manifest.Delete(path)
		return nil
	}

	chunkIDs := make([]string, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		chunkIDs = append(chunkIDs, c.ID)
	}
	if err := ix.BM25.AddChunks(ctx, result.Chunks); err != nil {
		return err
	}

	symbolIDs := make([]string, 0, len(result.Symbols))
	for _, sym := range result.Symbols {
		ix.Graph.AddSymbol(sym)
		symbolIDs = append(symbolIDs, sym.ID)
	}

	ix.Manifest.Set(path, manifest.FileEntry{
		Hash:      chunk.ContentHash(string(data)),
		ModTime:   file.ModTime,
		ChunkIDs:  chunkIDs,
		SymbolIDs: symbolIDs,
	})
	return nil
}

// IsStale reports whether any manifest entry's file is missing or its
// content hash no longer matches, without touching the graph.
func (ix *Indexer) IsStale() bool {
	for _, path := range ix.Manifest.Paths() {
		entry, _ := ix.Manifest.Get(path)
		data, err := os.ReadFile(filepath.Join(ix.rootDir, path))
		if err != nil {
			return true
		}
		if chunk.ContentHash(string(data)) != entry.Hash {
			return true
		}
	}
	return false
}

// CheckConsistency verifies the manifest's id sets against the lexical
// index and the graph over the indexer's current in-memory artifacts.
func (ix *Indexer) CheckConsistency(ctx context.Context) (*CheckResult, error) {
	checker := NewConsistencyChecker(ix.Manifest, ix.BM25, ix.Graph)
	return checker.Check(ctx)
}

func (ix *Indexer) persist() error {
	if err := ix.BM25.Save(ix.bm25Path()); err != nil {
		return fmt.Errorf("tarangindex: failed to save bm25: %w", err)
	}
	if err := ix.Graph.Save(ix.graphPath()); err != nil {
		return fmt.Errorf("tarangindex: failed to save graph: %w", err)
	}
	if err := ix.Manifest.Save(ix.manifestPath()); err != nil {
		return fmt.Errorf("tarangindex: failed to save manifest: %w", err)
	}
	return nil
}
