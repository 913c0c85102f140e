package graph

import (
	"encoding/json"
	"fmt"
	"os"
)

// document is the stable on-disk shape: nodes and edges keyed by id. The
// name index is never persisted; Load rebuilds it from the node set.
type document struct {
	Nodes map[string]*Node  `json:"nodes"`
	Edges map[string]*Edges `json:"edges"`
}

// Save writes the graph as a single JSON document, atomically (write to a
// temp file then rename), matching the persistence pattern used across the
// rest of the index (bm25 blob, manifest, execution state).
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	doc := document{
		Nodes: make(map[string]*Node, len(g.nodes)),
		Edges: make(map[string]*Edges, len(g.edges)),
	}
	for id, n := range g.nodes {
		doc.Nodes[id] = n
	}
	for id, e := range g.edges {
		doc.Edges[id] = e
	}
	g.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: failed to encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("graph: failed to write: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load replaces the graph's contents from a JSON document written by Save,
// rebuilding the name index from scratch.
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("graph: unreadable: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("graph: corrupt document: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*Node, len(doc.Nodes))
	g.edges = make(map[string]*Edges, len(doc.Edges))
	g.nameIndex = make(map[string][]string)
	g.pending = make(map[string][]pendingLink)

	for id, n := range doc.Nodes {
		g.nodes[id] = n
		g.nameIndex[n.Name] = appendUnique(g.nameIndex[n.Name], id)
	}
	for id, e := range doc.Edges {
		if e == nil {
			e = &Edges{}
		}
		g.edges[id] = e
	}
	for id := range g.nodes {
		if _, ok := g.edges[id]; !ok {
			g.edges[id] = &Edges{}
		}
	}
	return nil
}
