package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarang-dev/tarang/internal/chunk"
)

// TestGraph_PythonABMScenario exercises the canonical small fixture: class
// A defines method A.m, which calls function f. Asserts the four edges
// named by the scenario directly.
func TestGraph_PythonABMScenario(t *testing.T) {
	g := New()

	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:A", Name: "A", Type: chunk.TypeClass, File: "a.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{
		ID: "a.py:A.m", Name: "m", Type: chunk.TypeMethod, File: "a.py", Line: 2,
		ParentClass: "A", Calls: []string{"f"},
	})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f", Name: "f", Type: chunk.TypeFunction, File: "a.py", Line: 3})

	methodEdges, ok := g.GetEdges("a.py:A.m")
	require.True(t, ok)
	assert.Contains(t, methodEdges.Calls, "a.py:f")
	assert.Contains(t, methodEdges.DefinedIn, "a.py:A")

	funcEdges, ok := g.GetEdges("a.py:f")
	require.True(t, ok)
	assert.Contains(t, funcEdges.CalledBy, "a.py:A.m")

	classEdges, ok := g.GetEdges("a.py:A")
	require.True(t, ok)
	assert.Contains(t, classEdges.Defines, "a.py:A.m")
}

func TestGraph_InheritsIsReciprocal(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:Base", Name: "Base", Type: chunk.TypeClass, File: "a.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:Child", Name: "Child", Type: chunk.TypeClass, File: "a.py", Line: 5, Imports: []string{"Base"}})

	childEdges, ok := g.GetEdges("a.py:Child")
	require.True(t, ok)
	assert.Contains(t, childEdges.Inherits, "a.py:Base")

	baseEdges, ok := g.GetEdges("a.py:Base")
	require.True(t, ok)
	assert.Contains(t, baseEdges.InheritedBy, "a.py:Child")
}

func TestGraph_SQLViewReferencesTable(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "schema.sql:users", Name: "users", Type: chunk.TypeTable, File: "schema.sql", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{
		ID: "schema.sql:active_users", Name: "active_users", Type: chunk.TypeView, File: "schema.sql", Line: 10,
		Imports: []string{"users"},
	})

	viewEdges, ok := g.GetEdges("schema.sql:active_users")
	require.True(t, ok)
	assert.Contains(t, viewEdges.References, "schema.sql:users")

	tableEdges, ok := g.GetEdges("schema.sql:users")
	require.True(t, ok)
	assert.Contains(t, tableEdges.ReferencedBy, "schema.sql:active_users")
}

// TestGraph_CallResolutionPrefersSameFile verifies that when two files
// define a symbol with the same bare name, a caller in one file resolves
// its call to the candidate in its own file.
func TestGraph_CallResolutionPrefersSameFile(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:helper", Name: "helper", Type: chunk.TypeFunction, File: "a.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "b.py:helper", Name: "helper", Type: chunk.TypeFunction, File: "b.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:caller", Name: "caller", Type: chunk.TypeFunction, File: "a.py", Line: 5, Calls: []string{"helper"}})

	edges, ok := g.GetEdges("a.py:caller")
	require.True(t, ok)
	assert.Equal(t, []string{"a.py:helper"}, edges.Calls)
	assert.NotContains(t, edges.Calls, "b.py:helper")
}

func TestGraph_CallResolutionFallsBackToAnyFileWhenNoSameFileMatch(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "b.py:helper", Name: "helper", Type: chunk.TypeFunction, File: "b.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:caller", Name: "caller", Type: chunk.TypeFunction, File: "a.py", Line: 5, Calls: []string{"helper"}})

	edges, ok := g.GetEdges("a.py:caller")
	require.True(t, ok)
	assert.Equal(t, []string{"b.py:helper"}, edges.Calls)
}

func TestGraph_UnresolvedCallAddsNoEdge(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:caller", Name: "caller", Type: chunk.TypeFunction, File: "a.py", Line: 5, Calls: []string{"nonexistent"}})

	edges, ok := g.GetEdges("a.py:caller")
	require.True(t, ok)
	assert.Empty(t, edges.Calls)
}

func TestGraph_RemoveFilePurgesNodesAndDanglingEdges(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:A", Name: "A", Type: chunk.TypeClass, File: "a.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:A.m", Name: "m", Type: chunk.TypeMethod, File: "a.py", Line: 2, ParentClass: "A", Calls: []string{"f"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "b.py:f", Name: "f", Type: chunk.TypeFunction, File: "b.py", Line: 1})

	g.RemoveFile("a.py")

	_, ok := g.GetNode("a.py:A")
	assert.False(t, ok)
	_, ok = g.GetNode("a.py:A.m")
	assert.False(t, ok)

	fEdges, ok := g.GetEdges("b.py:f")
	require.True(t, ok)
	assert.Empty(t, fEdges.CalledBy)

	assert.Equal(t, 1, g.Len())
}

func TestGraph_RemoveFileCleansNameIndex(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f", Name: "f", Type: chunk.TypeFunction, File: "a.py", Line: 1})
	g.RemoveFile("a.py")

	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:caller", Name: "caller", Type: chunk.TypeFunction, File: "a.py", Line: 2, Calls: []string{"f"}})
	edges, ok := g.GetEdges("a.py:caller")
	require.True(t, ok)
	assert.Empty(t, edges.Calls)
}

func TestGraph_GetNeighborsBFSOrderAndHops(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f1", Name: "f1", Type: chunk.TypeFunction, File: "a.py", Line: 1, Calls: []string{"f2"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f2", Name: "f2", Type: chunk.TypeFunction, File: "a.py", Line: 2, Calls: []string{"f3"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f3", Name: "f3", Type: chunk.TypeFunction, File: "a.py", Line: 3})

	oneHop := g.GetNeighbors("a.py:f1", 1, []EdgeKind{EdgeCalls})
	require.Len(t, oneHop, 1)
	assert.Equal(t, "a.py:f2", oneHop[0].ID)

	twoHop := g.GetNeighbors("a.py:f1", 2, []EdgeKind{EdgeCalls})
	require.Len(t, twoHop, 2)
	assert.Equal(t, "a.py:f2", twoHop[0].ID)
	assert.Equal(t, "a.py:f3", twoHop[1].ID)
}

func TestGraph_GetNeighborsExcludesStartAndDedupes(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f1", Name: "f1", Type: chunk.TypeFunction, File: "a.py", Line: 1, Calls: []string{"f2", "f3"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f2", Name: "f2", Type: chunk.TypeFunction, File: "a.py", Line: 2, Calls: []string{"f1"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f3", Name: "f3", Type: chunk.TypeFunction, File: "a.py", Line: 3})

	neighbors := g.GetNeighbors("a.py:f1", 3, nil)
	var ids []string
	for _, n := range neighbors {
		ids = append(ids, n.ID)
	}
	assert.NotContains(t, ids, "a.py:f1")
	assert.ElementsMatch(t, []string{"a.py:f2", "a.py:f3"}, ids)
}

func TestGraph_SaveLoadRoundTrip(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:A", Name: "A", Type: chunk.TypeClass, File: "a.py", Line: 1})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:A.m", Name: "m", Type: chunk.TypeMethod, File: "a.py", Line: 2, ParentClass: "A", Calls: []string{"f"}})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f", Name: "f", Type: chunk.TypeFunction, File: "a.py", Line: 3})

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, g.Len(), loaded.Len())

	edges, ok := loaded.GetEdges("a.py:A.m")
	require.True(t, ok)
	assert.Contains(t, edges.Calls, "a.py:f")
	assert.Contains(t, edges.DefinedIn, "a.py:A")

	// name index must be rebuilt: adding a new caller of "f" after load
	// should resolve correctly.
	loaded.AddSymbol(&chunk.SymbolInfo{ID: "a.py:g", Name: "g", Type: chunk.TypeFunction, File: "a.py", Line: 4, Calls: []string{"f"}})
	gEdges, ok := loaded.GetEdges("a.py:g")
	require.True(t, ok)
	assert.Contains(t, gEdges.Calls, "a.py:f")
}

func TestGraph_LoadRejectsMissingFile(t *testing.T) {
	g := New()
	err := g.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestGraph_UpsertReplacesNodeKeepsID(t *testing.T) {
	g := New()
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f", Name: "f", Type: chunk.TypeFunction, File: "a.py", Line: 1, Signature: "def f():"})
	g.AddSymbol(&chunk.SymbolInfo{ID: "a.py:f", Name: "f", Type: chunk.TypeFunction, File: "a.py", Line: 1, Signature: "def f(x):"})

	node, ok := g.GetNode("a.py:f")
	require.True(t, ok)
	assert.Equal(t, "def f(x):", node.Signature)
	assert.Equal(t, 1, g.Len())
}
