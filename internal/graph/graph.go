// Package graph implements the symbol graph: a directed property graph
// over code symbols with eagerly mirrored reverse edges, stored as a
// plain adjacency structure (string ids, mutex-guarded maps, JSON
// persistence).
package graph

import (
	"strings"
	"sync"

	"github.com/tarang-dev/tarang/internal/chunk"
)

// EdgeKind names one of the directed relation kinds the graph tracks.
type EdgeKind string

const (
	EdgeCalls       EdgeKind = "calls"
	EdgeCalledBy    EdgeKind = "called_by"
	EdgeInherits    EdgeKind = "inherits"
	EdgeInheritedBy EdgeKind = "inherited_by"
	EdgeDefines     EdgeKind = "defines"
	EdgeDefinedIn   EdgeKind = "defined_in"
	EdgeReferences  EdgeKind = "references"
	EdgeReferencedBy EdgeKind = "referenced_by"
)

// allEdgeKinds is the default hop-expansion set.
var allEdgeKinds = []EdgeKind{
	EdgeCalls, EdgeCalledBy, EdgeInherits, EdgeInheritedBy,
	EdgeDefines, EdgeDefinedIn, EdgeReferences, EdgeReferencedBy,
}

// Node is a symbol in the graph.
type Node struct {
	ID        string
	Name      string
	Type      chunk.Type
	File      string
	Line      int
	Signature string
}

// Edges holds one node's outgoing relations, keyed by kind.
type Edges struct {
	Calls        []string
	CalledBy     []string
	Inherits     []string
	InheritedBy  []string
	Defines      []string
	DefinedIn    []string
	References   []string
	ReferencedBy []string
}

func (e *Edges) list(kind EdgeKind) []string {
	switch kind {
	case EdgeCalls:
		return e.Calls
	case EdgeCalledBy:
		return e.CalledBy
	case EdgeInherits:
		return e.Inherits
	case EdgeInheritedBy:
		return e.InheritedBy
	case EdgeDefines:
		return e.Defines
	case EdgeDefinedIn:
		return e.DefinedIn
	case EdgeReferences:
		return e.References
	case EdgeReferencedBy:
		return e.ReferencedBy
	default:
		return nil
	}
}

func (e *Edges) add(kind EdgeKind, target string) {
	switch kind {
	case EdgeCalls:
		e.Calls = appendUnique(e.Calls, target)
	case EdgeCalledBy:
		e.CalledBy = appendUnique(e.CalledBy, target)
	case EdgeInherits:
		e.Inherits = appendUnique(e.Inherits, target)
	case EdgeInheritedBy:
		e.InheritedBy = appendUnique(e.InheritedBy, target)
	case EdgeDefines:
		e.Defines = appendUnique(e.Defines, target)
	case EdgeDefinedIn:
		e.DefinedIn = appendUnique(e.DefinedIn, target)
	case EdgeReferences:
		e.References = appendUnique(e.References, target)
	case EdgeReferencedBy:
		e.ReferencedBy = appendUnique(e.ReferencedBy, target)
	}
}

func (e *Edges) remove(id string) {
	e.Calls = removeID(e.Calls, id)
	e.CalledBy = removeID(e.CalledBy, id)
	e.Inherits = removeID(e.Inherits, id)
	e.InheritedBy = removeID(e.InheritedBy, id)
	e.Defines = removeID(e.Defines, id)
	e.DefinedIn = removeID(e.DefinedIn, id)
	e.References = removeID(e.References, id)
	e.ReferencedBy = removeID(e.ReferencedBy, id)
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func removeID(list []string, id string) []string {
	if len(list) == 0 {
		return list
	}
	out := list[:0:0]
	for _, existing := range list {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

var reciprocal = map[EdgeKind]EdgeKind{
	EdgeCalls:        EdgeCalledBy,
	EdgeCalledBy:     EdgeCalls,
	EdgeInherits:     EdgeInheritedBy,
	EdgeInheritedBy:  EdgeInherits,
	EdgeDefines:      EdgeDefinedIn,
	EdgeDefinedIn:    EdgeDefines,
	EdgeReferences:   EdgeReferencedBy,
	EdgeReferencedBy: EdgeReferences,
}

// pendingLink records a relation whose target name had no candidate at
// the time it was added; it is resolved when a node with that name
// arrives, so a caller can reference a symbol defined further down its
// own file (or in a file indexed later).
type pendingLink struct {
	sourceID string
	kind     EdgeKind
}

// Graph is the symbol graph. Safe for concurrent use.
type Graph struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	edges     map[string]*Edges
	nameIndex map[string][]string      // name -> node ids
	pending   map[string][]pendingLink // unresolved target name -> links
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		edges:     make(map[string]*Edges),
		nameIndex: make(map[string][]string),
		pending:   make(map[string][]pendingLink),
	}
}

// AddSymbol upserts a node from a chunker SymbolInfo and resolves its
// relations (calls, inherits/references, defines/defined_in) against the
// name index.
func (g *Graph) AddSymbol(info *chunk.SymbolInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := &Node{
		ID:        info.ID,
		Name:      info.Name,
		Type:      info.Type,
		File:      info.File,
		Line:      info.Line,
		Signature: info.Signature,
	}
	g.upsertNodeLocked(node)
	g.resolvePendingLocked(node)

	switch info.Type {
	case chunk.TypeClass:
		for _, parentName := range info.Imports {
			g.linkLocked(info.ID, parentName, EdgeInherits)
		}
	case chunk.TypeView, chunk.TypeProcedure, chunk.TypeFunctionSQL, chunk.TypeTrigger, chunk.TypeIndex:
		for _, tableName := range info.Imports {
			g.linkLocked(info.ID, tableName, EdgeReferences)
		}
	}

	for _, calleeName := range info.Calls {
		g.linkLocked(info.ID, calleeName, EdgeCalls)
	}

	if info.ParentClass != "" {
		if parentID, ok := g.resolveLocked(info.ID, info.ParentClass); ok {
			g.addEdgeLocked(info.ID, parentID, EdgeDefinedIn)
			g.addEdgeLocked(parentID, info.ID, EdgeDefines)
		}
	}
}

func (g *Graph) upsertNodeLocked(node *Node) {
	if existing, ok := g.nodes[node.ID]; ok {
		g.nameIndex[existing.Name] = removeID(g.nameIndex[existing.Name], node.ID)
		if len(g.nameIndex[existing.Name]) == 0 {
			delete(g.nameIndex, existing.Name)
		}
	}
	g.nodes[node.ID] = node
	if _, ok := g.edges[node.ID]; !ok {
		g.edges[node.ID] = &Edges{}
	}
	g.nameIndex[node.Name] = appendUnique(g.nameIndex[node.Name], node.ID)
}

// linkLocked resolves targetName via the name index and adds the edge
// plus its reciprocal for every resolved candidate. A name with no
// candidate yet is parked as pending and resolved when a node with that
// name is added.
func (g *Graph) linkLocked(sourceID, targetName string, kind EdgeKind) {
	candidates := g.candidatesLocked(sourceID, targetName)
	if len(candidates) == 0 {
		g.pending[targetName] = append(g.pending[targetName], pendingLink{sourceID: sourceID, kind: kind})
		return
	}
	for _, targetID := range candidates {
		if targetID == sourceID {
			continue
		}
		g.addEdgeLocked(sourceID, targetID, kind)
	}
}

// resolvePendingLocked connects any links that were waiting on a node
// with this name.
func (g *Graph) resolvePendingLocked(node *Node) {
	links := g.pending[node.Name]
	if len(links) == 0 {
		return
	}
	delete(g.pending, node.Name)
	for _, l := range links {
		if l.sourceID == node.ID {
			continue
		}
		if _, ok := g.nodes[l.sourceID]; !ok {
			continue
		}
		g.addEdgeLocked(l.sourceID, node.ID, l.kind)
	}
}

func (g *Graph) resolveLocked(sourceID, targetName string) (string, bool) {
	candidates := g.candidatesLocked(sourceID, targetName)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// candidatesLocked resolves a bare name via the name index. Candidates
// whose id starts with the source's own file path are preferred; if none
// match, all candidates for that name are returned.
func (g *Graph) candidatesLocked(sourceID, name string) []string {
	all := g.nameIndex[name]
	if len(all) == 0 {
		return nil
	}

	sourcePrefix := ""
	if i := strings.Index(sourceID, ":"); i >= 0 {
		sourcePrefix = sourceID[:i+1]
	}

	var sameFile []string
	for _, id := range all {
		if sourcePrefix != "" && strings.HasPrefix(id, sourcePrefix) {
			sameFile = append(sameFile, id)
		}
	}
	if len(sameFile) > 0 {
		return sameFile
	}
	return all
}

func (g *Graph) addEdgeLocked(sourceID, targetID string, kind EdgeKind) {
	if _, ok := g.nodes[targetID]; !ok {
		return
	}
	if _, ok := g.edges[sourceID]; !ok {
		g.edges[sourceID] = &Edges{}
	}
	g.edges[sourceID].add(kind, targetID)

	recip := reciprocal[kind]
	if _, ok := g.edges[targetID]; !ok {
		g.edges[targetID] = &Edges{}
	}
	g.edges[targetID].add(recip, sourceID)
}

// RemoveFile removes every node whose id begins with path + ":", purging
// those ids from every remaining node's edge lists and cleaning any
// name-index buckets left empty.
func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prefix := path + ":"
	var removed []string
	for id := range g.nodes {
		if strings.HasPrefix(id, prefix) {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return
	}

	for _, id := range removed {
		if node, ok := g.nodes[id]; ok {
			g.nameIndex[node.Name] = removeID(g.nameIndex[node.Name], id)
			if len(g.nameIndex[node.Name]) == 0 {
				delete(g.nameIndex, node.Name)
			}
		}
		delete(g.nodes, id)
		delete(g.edges, id)
	}

	removedSet := make(map[string]bool, len(removed))
	for _, id := range removed {
		removedSet[id] = true
	}
	for _, edges := range g.edges {
		for rid := range removedSet {
			edges.remove(rid)
		}
	}

	for name, links := range g.pending {
		kept := links[:0:0]
		for _, l := range links {
			if !strings.HasPrefix(l.sourceID, prefix) {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			delete(g.pending, name)
		} else {
			g.pending[name] = kept
		}
	}
}

// GetNeighbors performs a breadth-first expansion from id over the given
// edge kinds (all kinds when edgeTypes is empty), returning distinct
// nodes excluding the start node, in discovery order.
func (g *Graph) GetNeighbors(id string, hops int, edgeTypes []EdgeKind) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if hops <= 0 {
		return nil
	}
	kinds := edgeTypes
	if len(kinds) == 0 {
		kinds = allEdgeKinds
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var discovered []*Node

	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			edges, ok := g.edges[current]
			if !ok {
				continue
			}
			for _, kind := range kinds {
				for _, neighborID := range edges.list(kind) {
					if visited[neighborID] {
						continue
					}
					visited[neighborID] = true
					if node, ok := g.nodes[neighborID]; ok {
						discovered = append(discovered, node)
					}
					next = append(next, neighborID)
				}
			}
		}
		frontier = next
	}

	return discovered
}

// GetNode returns a node by id.
func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetEdges returns a copy of a node's edge lists.
func (g *Graph) GetEdges(id string) (Edges, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	if !ok {
		return Edges{}, false
	}
	return *e, true
}

// Len returns the node count.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// NodeIDs returns every node id currently in the graph.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}
