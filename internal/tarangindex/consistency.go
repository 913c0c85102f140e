// Package tarangindex orchestrates the chunker, the lexical index, the
// symbol graph, and the manifest into the incremental project indexer,
// and provides on-demand consistency checking over the three persisted
// artifacts.
package tarangindex

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarang-dev/tarang/internal/bm25"
	"github.com/tarang-dev/tarang/internal/graph"
	"github.com/tarang-dev/tarang/internal/manifest"
)

// InconsistencyType categorizes a detected drift between the manifest and
// one of the two stores it references.
type InconsistencyType int

const (
	// InconsistencyOrphanBM25 indicates a BM25 chunk id with no manifest entry referencing it.
	InconsistencyOrphanBM25 InconsistencyType = iota
	// InconsistencyOrphanGraphNode indicates a graph node id with no manifest entry referencing it.
	InconsistencyOrphanGraphNode
	// InconsistencyMissingBM25 indicates a manifest chunk id absent from BM25.
	InconsistencyMissingBM25
	// InconsistencyMissingGraphNode indicates a manifest symbol id absent from the graph.
	InconsistencyMissingGraphNode
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyOrphanGraphNode:
		return "orphan_graph_node"
	case InconsistencyMissingBM25:
		return "missing_bm25"
	case InconsistencyMissingGraphNode:
		return "missing_graph_node"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ID      string
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// ChunksChecked is the number of manifest chunk ids verified.
	ChunksChecked int
	// SymbolsChecked is the number of manifest symbol ids verified.
	SymbolsChecked int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// ConsistencyChecker validates the manifest invariant: the union of
// chunk_ids across all manifest entries equals the BM25 index's id set,
// and the union of symbol_ids equals the graph's node set.
type ConsistencyChecker struct {
	manifest *manifest.Manifest
	bm25     bm25.Index
	graph    *graph.Graph
}

// NewConsistencyChecker creates a checker over the three artifacts a
// ProjectIndexer owns.
func NewConsistencyChecker(m *manifest.Manifest, idx bm25.Index, g *graph.Graph) *ConsistencyChecker {
	return &ConsistencyChecker{manifest: m, bm25: idx, graph: g}
}

// Check scans the manifest against both stores for inconsistencies. This
// is O(n) in the number of ids across all three artifacts.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	manifestChunkIDs := make(map[string]bool)
	manifestSymbolIDs := make(map[string]bool)
	for _, path := range c.manifest.Paths() {
		entry, _ := c.manifest.Get(path)
		for _, id := range entry.ChunkIDs {
			manifestChunkIDs[id] = true
		}
		for _, id := range entry.SymbolIDs {
			manifestSymbolIDs[id] = true
		}
	}

	bm25Set := make(map[string]bool)
	for _, id := range c.bm25.AllIDs() {
		bm25Set[id] = true
		if !manifestChunkIDs[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanBM25,
				ID:      id,
				Details: "BM25 chunk without a referencing manifest entry",
			})
		}
	}
	for id := range manifestChunkIDs {
		if !bm25Set[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingBM25,
				ID:      id,
				Details: "manifest chunk id missing from BM25 index",
			})
		}
	}

	if c.graph != nil {
		graphSet := make(map[string]bool)
		for _, id := range c.graph.NodeIDs() {
			graphSet[id] = true
			if !manifestSymbolIDs[id] {
				issues = append(issues, Inconsistency{
					Type:    InconsistencyOrphanGraphNode,
					ID:      id,
					Details: "graph node without a referencing manifest entry",
				})
			}
		}
		for id := range manifestSymbolIDs {
			if !graphSet[id] {
				issues = append(issues, Inconsistency{
					Type:    InconsistencyMissingGraphNode,
					ID:      id,
					Details: "manifest symbol id missing from the graph",
				})
			}
		}
	}

	return &CheckResult{
		ChunksChecked:   len(manifestChunkIDs),
		SymbolsChecked:  len(manifestSymbolIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// QuickCheck performs a lightweight check: only counts are compared, not
// individual ids. Returns true if the manifest's chunk count matches the
// BM25 corpus size.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) bool {
	manifestChunkIDs := make(map[string]bool)
	for _, path := range c.manifest.Paths() {
		entry, _ := c.manifest.Get(path)
		for _, id := range entry.ChunkIDs {
			manifestChunkIDs[id] = true
		}
	}

	bm25Count := c.bm25.Stats().TotalChunks
	consistent := len(manifestChunkIDs) == bm25Count

	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("manifest_chunks", len(manifestChunkIDs)),
			slog.Int("bm25_chunks", bm25Count))
	}
	return consistent
}
