package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_SetGetDelete(t *testing.T) {
	m := New("0.1.0")
	m.Set("a.py", FileEntry{Hash: "abc123", ChunkIDs: []string{"a.py:f"}, SymbolIDs: []string{"a.py:f"}})

	entry, ok := m.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, "abc123", entry.Hash)
	assert.Equal(t, []string{"a.py:f"}, entry.ChunkIDs)

	m.Delete("a.py")
	_, ok = m.Get("a.py")
	assert.False(t, ok)
}

func TestManifest_SaveLoadRoundTrip(t *testing.T) {
	m := New("0.1.0")
	m.Touch(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m.Set("a.py", FileEntry{
		Hash:      "abc123",
		ModTime:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		ChunkIDs:  []string{"a.py:f", "a.py:A"},
		SymbolIDs: []string{"a.py:f", "a.py:A"},
	})

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version, loaded.SchemaVersion)
	assert.Equal(t, "0.1.0", loaded.TarangVersion)
	assert.True(t, loaded.IndexedAt.Equal(m.IndexedAt))

	entry, ok := loaded.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, "abc123", entry.Hash)
	assert.ElementsMatch(t, []string{"a.py:f", "a.py:A"}, entry.ChunkIDs)
}

func TestManifest_LoadToleratesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	raw := `{
		"version": 1,
		"indexed_at": "2026-01-01T00:00:00Z",
		"tarang_version": "0.1.0",
		"files": {
			"a.py": {"hash": "abc", "mtime": "2025-12-31T00:00:00Z", "chunk_ids": ["a.py:f"], "symbol_ids": ["a.py:f"]}
		},
		"future_field": {"nested": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	entry, ok := m.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, "abc", entry.Hash)
}

func TestManifest_LoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestManifest_PathsReturnsAllTrackedFiles(t *testing.T) {
	m := New("0.1.0")
	m.Set("a.py", FileEntry{Hash: "1"})
	m.Set("b.py", FileEntry{Hash: "2"})
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, m.Paths())
}
