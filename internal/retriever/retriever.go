// Package retriever fuses lexical recall with structural context: BM25
// top-k hits expanded by a bounded symbol-graph neighborhood, returning
// full bodies for direct hits and signatures-only for neighbors. The
// retriever is a thin orchestrator over the other packages' public
// APIs, with no state of its own beyond the indexes it's given.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/tarang-dev/tarang/internal/bm25"
	"github.com/tarang-dev/tarang/internal/chunk"
	"github.com/tarang-dev/tarang/internal/graph"
	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// Signature is the structural-context-only view of a node one or two
// hops away from a direct hit: enough to identify it, never its body.
type Signature struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	File      string `json:"file"`
	Signature string `json:"signature"`
}

// Stats summarizes a retrieval for callers that want counts without
// walking the result slices.
type Stats struct {
	ChunkCount     int `json:"chunk_count"`
	SignatureCount int `json:"signature_count"`
}

// Result is what Retrieve returns: full chunks for direct hits, bare
// signatures for graph neighbors, and a compact name-only graph context
// keyed by every id present in either set.
type Result struct {
	Chunks     []*chunk.Chunk          `json:"chunks"`
	Signatures []Signature             `json:"signatures"`
	Graph      map[string]GraphContext `json:"graph"`
	Stats      Stats                   `json:"stats"`
}

// GraphContext lists, by relation kind, the *names* (not ids) of a node's
// neighbors - the compact graph context carries names, leaving ids as
// the full chunks'/signatures' own keys.
type GraphContext struct {
	Calls        []string `json:"calls,omitempty"`
	CalledBy     []string `json:"called_by,omitempty"`
	Inherits     []string `json:"inherits,omitempty"`
	InheritedBy  []string `json:"inherited_by,omitempty"`
	Defines      []string `json:"defines,omitempty"`
	DefinedIn    []string `json:"defined_in,omitempty"`
	References   []string `json:"references,omitempty"`
	ReferencedBy []string `json:"referenced_by,omitempty"`
}

// Options bounds one Retrieve call.
type Options struct {
	Hops          int
	MaxChunks     int
	MaxSignatures int
}

// DefaultOptions mirrors search_code's own defaults: hops=1, max_chunks=10.
func DefaultOptions() Options {
	return Options{Hops: 1, MaxChunks: 10, MaxSignatures: 20}
}

// Retriever orchestrates BM25 + the symbol graph into graph-augmented
// retrieval. It holds no state beyond the two indexes it's constructed
// with - both are owned and kept current by the Indexer.
type Retriever struct {
	bm25  bm25.Index
	graph *graph.Graph
}

// New builds a Retriever over an already-loaded lexical index and graph.
func New(idx bm25.Index, g *graph.Graph) *Retriever {
	return &Retriever{bm25: idx, graph: g}
}

// Retrieve runs BM25 top-k for query, then widens the hits through the
// symbol graph per opts.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	hits, err := r.bm25.Query(ctx, query, opts.MaxChunks)
	if err != nil {
		return nil, err
	}
	chunks := make([]*chunk.Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, h.Chunk)
	}
	return r.expand(chunks, opts), nil
}

// RetrieveForFile starts from every chunk already attributed to path,
// then expands identically to Retrieve.
func (r *Retriever) RetrieveForFile(path string, opts Options) *Result {
	chunks := r.bm25.GetChunksForFile(path)
	return r.expand(chunks, opts)
}

// RetrieveSymbol searches BM25 for name, keeps only chunks whose Name
// matches case-insensitively, falling back to the top 3 BM25 hits when
// none match by name, then expands.
func (r *Retriever) RetrieveSymbol(ctx context.Context, name string, opts Options) (*Result, error) {
	k := opts.MaxChunks
	if k <= 0 {
		k = 10
	}
	hits, err := r.bm25.Query(ctx, name, k)
	if err != nil {
		return nil, err
	}

	var matched []*chunk.Chunk
	for _, h := range hits {
		if strings.EqualFold(h.Chunk.Name, name) {
			matched = append(matched, h.Chunk)
		}
	}
	if len(matched) == 0 {
		top := hits
		if len(top) > 3 {
			top = top[:3]
		}
		for _, h := range top {
			matched = append(matched, h.Chunk)
		}
	}
	return r.expand(matched, opts), nil
}

// expand runs the graph-expansion + graph-context-building steps shared
// by every Retrieve* entry point.
func (r *Retriever) expand(chunks []*chunk.Chunk, opts Options) *Result {
	hops := opts.Hops
	maxSignatures := opts.MaxSignatures
	if maxSignatures <= 0 {
		maxSignatures = 20
	}

	direct := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		direct[c.ID] = true
	}

	var signatures []Signature
	graphIDs := make(map[string]bool, len(chunks))
	for id := range direct {
		graphIDs[id] = true
	}

	if hops >= 1 && r.graph != nil && r.graph.Len() > 0 {
		seen := make(map[string]bool)
		for id := range direct {
			for _, n := range r.graph.GetNeighbors(id, hops, nil) {
				if direct[n.ID] || seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				graphIDs[n.ID] = true
				if len(signatures) < maxSignatures {
					signatures = append(signatures, Signature{
						ID:        n.ID,
						Name:      n.Name,
						Type:      string(n.Type),
						File:      n.File,
						Signature: n.Signature,
					})
				}
			}
		}
	}

	return &Result{
		Chunks:     chunks,
		Signatures: signatures,
		Graph:      r.buildGraphContext(graphIDs),
		Stats: Stats{
			ChunkCount:     len(chunks),
			SignatureCount: len(signatures),
		},
	}
}

// buildGraphContext maps every id in ids to a dict of relation-kind ->
// neighbor names, skipping ids the graph doesn't know.
func (r *Retriever) buildGraphContext(ids map[string]bool) map[string]GraphContext {
	if r.graph == nil || len(ids) == 0 {
		return map[string]GraphContext{}
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	out := make(map[string]GraphContext, len(ordered))
	for _, id := range ordered {
		edges, ok := r.graph.GetEdges(id)
		if !ok {
			continue
		}
		gc := GraphContext{
			Calls:        r.names(edges.Calls),
			CalledBy:     r.names(edges.CalledBy),
			Inherits:     r.names(edges.Inherits),
			InheritedBy:  r.names(edges.InheritedBy),
			Defines:      r.names(edges.Defines),
			DefinedIn:    r.names(edges.DefinedIn),
			References:   r.names(edges.References),
			ReferencedBy: r.names(edges.ReferencedBy),
		}
		if isEmptyContext(gc) {
			continue
		}
		out[id] = gc
	}
	return out
}

func (r *Retriever) names(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := r.graph.GetNode(id); ok {
			out = append(out, n.Name)
		}
	}
	return out
}

func isEmptyContext(gc GraphContext) bool {
	return len(gc.Calls) == 0 && len(gc.CalledBy) == 0 && len(gc.Inherits) == 0 &&
		len(gc.InheritedBy) == 0 && len(gc.Defines) == 0 && len(gc.DefinedIn) == 0 &&
		len(gc.References) == 0 && len(gc.ReferencedBy) == 0
}

// ErrNotIndexed is returned by callers (e.g. the search_code tool) that
// need a typed NotIndexed error when no index is available at all; the
// Retriever itself assumes it was only constructed once an index loaded.
func ErrNotIndexed(projectPath string) error {
	return tarangerr.NotIndexed(projectPath)
}
