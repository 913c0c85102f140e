// Package bm25 implements the lexical index: an Okapi-BM25-scored corpus
// of chunks, backed by Bleve's in-memory scorer and persisted as one
// versioned blob so loading never depends on Bleve's own on-disk segment
// layout surviving a binary upgrade.
package bm25

import (
	"context"

	"github.com/tarang-dev/tarang/internal/chunk"
)

// Config tunes the index. Bleve's built-in similarity computation stands
// in for a hand-tunable k1/b Okapi implementation - callers treat BM25
// scores as relative, not absolute, so any standard scoring function
// qualifies. K1 and B are kept for documentation/compatibility with
// callers that inspect configuration, even though Bleve's analyzer chain
// (not these fields) does the actual scoring.
type Config struct {
	K1 float64
	B  float64
}

// DefaultConfig returns the standard Okapi BM25 tuning.
func DefaultConfig() Config {
	return Config{K1: 1.5, B: 0.75}
}

// Result is one scored hit.
type Result struct {
	Chunk *chunk.Chunk
	Score float64
}

// Stats summarizes the current corpus.
type Stats struct {
	TotalChunks  int
	TermCount    int
	AvgDocLength float64
}

// Index is the lexical index over a chunk corpus.
type Index interface {
	// Build replaces the entire corpus and fits the index against it.
	Build(ctx context.Context, chunks []*chunk.Chunk) error

	// Query tokenizes q, scores every chunk, and returns the top-k chunks
	// with strictly positive score, sorted by descending score with ties
	// broken by ascending chunk id. Returns an empty slice (not an error)
	// when the tokenized query is empty.
	Query(ctx context.Context, q string, k int) ([]Result, error)

	// AddChunks upserts chunks by id (replacing any existing chunk with
	// the same id) and re-fits the index against the resulting corpus.
	AddChunks(ctx context.Context, chunks []*chunk.Chunk) error

	// RemoveChunks drops chunks by id and re-fits the index.
	RemoveChunks(ctx context.Context, ids []string) error

	// GetChunksForFile returns, in insertion order, every chunk whose
	// File equals path.
	GetChunksForFile(path string) []*chunk.Chunk

	// GetChunk returns a single chunk by id, or (nil, false) if absent.
	GetChunk(id string) (*chunk.Chunk, bool)

	// AllIDs returns every chunk id currently in the corpus.
	AllIDs() []string

	Stats() Stats

	// Save serializes the index and its chunk corpus to one blob at path.
	Save(path string) error

	// Load restores the index and chunk corpus from the blob at path. A
	// missing file, an unreadable blob, or a version mismatch all return
	// an error - callers must treat the index as absent in that case.
	Load(path string) error

	Close() error
}
