package tarangconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)

	assert.Equal(t, 1, cfg.Retrieval.Hops)
	assert.Equal(t, 10, cfg.Retrieval.MaxChunks)
	assert.Equal(t, 20, cfg.Retrieval.MaxSignatures)

	assert.Equal(t, 5*time.Minute, cfg.Execution.CheckpointInterval)
	assert.Equal(t, 1*time.Hour, cfg.Execution.Deadline)
	assert.Equal(t, 60*time.Second, cfg.Execution.ShellTimeout)

	assert.Contains(t, cfg.Index.Exclude, ".git")
	assert.Contains(t, cfg.Index.Exclude, "node_modules")

	assert.Equal(t, "text/event-stream", cfg.Stream.Headers["Accept"])
	assert.Equal(t, "3.0", cfg.Stream.Headers["X-Tarang-Protocol-Version"])
}

func TestNewConfig_ExcludeSliceIsACopy(t *testing.T) {
	a := NewConfig()
	b := NewConfig()

	a.Index.Exclude[0] = "mutated"

	assert.NotEqual(t, a.Index.Exclude[0], b.Index.Exclude[0])
}

func TestLoad_NoProjectFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.BM25.K1)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
bm25:
  k1: 1.2
  b: 0.5
retrieval:
  hops: 2
  max_chunks: 25
index:
  exclude:
    - "testdata"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tarang.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 1.2, cfg.BM25.K1)
	assert.Equal(t, 0.5, cfg.BM25.B)
	assert.Equal(t, 2, cfg.Retrieval.Hops)
	assert.Equal(t, 25, cfg.Retrieval.MaxChunks)
	// Default retrieval field not mentioned in the override survives.
	assert.Equal(t, 20, cfg.Retrieval.MaxSignatures)
	// Exclude patterns are appended to, not replaced.
	assert.Contains(t, cfg.Index.Exclude, ".git")
	assert.Contains(t, cfg.Index.Exclude, "testdata")
}

func TestLoad_YMLVariantIsRecognized(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tarang.yml"), []byte("bm25:\n  k1: 2.0\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.BM25.K1)
}

func TestLoad_MalformedYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tarang.yaml"), []byte("bm25: [this is not a mapping"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesTakePriorityOverProjectFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tarang.yaml"), []byte("bm25:\n  k1: 1.2\n"), 0o644))

	t.Setenv("TARANG_BM25_K1", "3.3")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3.3, cfg.BM25.K1)
}

func TestLoad_EnvOverridesDurationsAndStream(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("TARANG_CHECKPOINT_INTERVAL", "30s")
	t.Setenv("TARANG_DEADLINE", "2h")
	t.Setenv("TARANG_STREAM_BASE_URL", "https://example.invalid")
	t.Setenv("TARANG_STREAM_AUTH_TOKEN", "secret-token")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Execution.CheckpointInterval)
	assert.Equal(t, 2*time.Hour, cfg.Execution.Deadline)
	assert.Equal(t, "https://example.invalid", cfg.Stream.BaseURL)
	assert.Equal(t, "Bearer secret-token", cfg.Stream.Headers["Authorization"])
}

func TestLoad_InvalidEnvValueIsIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TARANG_BM25_K1", "not-a-number")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.BM25.K1) // falls back to default
}

func TestValidate_RejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative k1", func(c *Config) { c.BM25.K1 = -1 }, "bm25.k1"},
		{"b above one", func(c *Config) { c.BM25.B = 1.5 }, "bm25.b"},
		{"negative hops", func(c *Config) { c.Retrieval.Hops = -1 }, "retrieval.hops"},
		{"zero max chunks", func(c *Config) { c.Retrieval.MaxChunks = 0 }, "retrieval.max_chunks"},
		{"zero max signatures", func(c *Config) { c.Retrieval.MaxSignatures = 0 }, "retrieval.max_signatures"},
		{"zero checkpoint interval", func(c *Config) { c.Execution.CheckpointInterval = 0 }, "execution.checkpoint_interval"},
		{"zero deadline", func(c *Config) { c.Execution.Deadline = 0 }, "execution.deadline"},
		{"zero shell timeout", func(c *Config) { c.Execution.ShellTimeout = 0 }, "execution.shell_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_WritesConfiguredValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.BM25.K1 = 1.8
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	// Load() only reads .tarang.yaml/.yml, not an arbitrary path, so
	// check the written file's text directly.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "k1: 1.8")
	_ = loaded
}

func TestFindProjectRoot_FindsGitDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_FindsOverrideFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tarang.yaml"), []byte("version: 1\n"), 0o644))

	nested := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_NoMarkerReturnsStartDir(t *testing.T) {
	dir := t.TempDir()

	found, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, found)
}
