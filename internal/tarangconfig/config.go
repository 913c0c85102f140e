// Package tarangconfig loads the engine's runtime configuration: index
// exclude patterns, BM25 tuning, retrieval defaults, execution-state
// checkpoint/deadline durations, and the stream client's endpoint and
// headers. Config loading is a thin external collaborator here - the
// project-type detection, embeddings, and compaction machinery of a
// full-blown config layer have no home in this engine; see DESIGN.md
// for what was dropped and why.
package tarangconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for the engine.
type Config struct {
	Version   int             `yaml:"version"`
	Index     IndexConfig     `yaml:"index"`
	BM25      BM25Config      `yaml:"bm25"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Execution ExecutionConfig `yaml:"execution"`
	Stream    StreamConfig    `yaml:"stream"`
}

// IndexConfig controls what the scanner feeds to the chunker.
type IndexConfig struct {
	Exclude []string `yaml:"exclude"`
}

// BM25Config tunes the lexical index's scoring function.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// RetrievalConfig holds the defaults retrieve() falls back to when a
// caller (CLI flag, tool call) doesn't override them.
type RetrievalConfig struct {
	Hops          int `yaml:"hops"`
	MaxChunks     int `yaml:"max_chunks"`
	MaxSignatures int `yaml:"max_signatures"`
}

// ExecutionConfig governs the execution-state checkpoint cadence, the
// overall task deadline, and the shell tool's per-call timeout.
type ExecutionConfig struct {
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	Deadline           time.Duration `yaml:"deadline"`
	ShellTimeout       time.Duration `yaml:"shell_timeout"`
}

// StreamConfig addresses the remote reasoning endpoint the stream
// client opens a session against.
type StreamConfig struct {
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
}

// defaultExcludePatterns mirrors common VCS/build/dependency directories
// a source scan should never walk into.
var defaultExcludePatterns = []string{
	".git", ".tarang", "node_modules", "vendor", "dist", "build",
	"__pycache__", ".venv", "venv", "target", ".idea", ".vscode",
}

// NewConfig returns a Config populated with the built-in defaults:
// BM25 k1=1.5/b=0.75, search_code's hops=1/max_chunks=10, a
// 5-minute checkpoint interval, a 1-hour task deadline, and a 60s
// shell timeout.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Exclude: append([]string(nil), defaultExcludePatterns...),
		},
		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Retrieval: RetrievalConfig{
			Hops:          1,
			MaxChunks:     10,
			MaxSignatures: 20,
		},
		Execution: ExecutionConfig{
			CheckpointInterval: 5 * time.Minute,
			Deadline:           1 * time.Hour,
			ShellTimeout:       60 * time.Second,
		},
		Stream: StreamConfig{
			BaseURL: "",
			Headers: map[string]string{
				"Accept":                    "text/event-stream",
				"Content-Type":              "application/json",
				"X-Tarang-Protocol-Version": "3.0",
			},
		},
	}
}

// projectConfigNames are the project-local override files checked in
// the project root, in priority order.
var projectConfigNames = []string{".tarang.yaml", ".tarang.yml"}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, a project-local override file (.tarang.yaml/.yml in dir),
// then TARANG_* environment variables. It never reads a file outside
// dir, so the caller decides what "project root" means.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := applyProjectFile(cfg, dir); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyProjectFile(cfg *Config, dir string) error {
	for _, name := range projectConfigNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		mergeWith(cfg, &parsed)
		return nil
	}
	return nil
}

// mergeWith merges non-zero values from other into cfg. Exclude
// patterns are appended to, not replaced, so a project file adds to
// the built-in list rather than having to restate it.
func mergeWith(cfg *Config, other *Config) {
	if other.Version != 0 {
		cfg.Version = other.Version
	}
	if len(other.Index.Exclude) > 0 {
		cfg.Index.Exclude = append(cfg.Index.Exclude, other.Index.Exclude...)
	}
	if other.BM25.K1 != 0 {
		cfg.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		cfg.BM25.B = other.BM25.B
	}
	if other.Retrieval.Hops != 0 {
		cfg.Retrieval.Hops = other.Retrieval.Hops
	}
	if other.Retrieval.MaxChunks != 0 {
		cfg.Retrieval.MaxChunks = other.Retrieval.MaxChunks
	}
	if other.Retrieval.MaxSignatures != 0 {
		cfg.Retrieval.MaxSignatures = other.Retrieval.MaxSignatures
	}
	if other.Execution.CheckpointInterval != 0 {
		cfg.Execution.CheckpointInterval = other.Execution.CheckpointInterval
	}
	if other.Execution.Deadline != 0 {
		cfg.Execution.Deadline = other.Execution.Deadline
	}
	if other.Execution.ShellTimeout != 0 {
		cfg.Execution.ShellTimeout = other.Execution.ShellTimeout
	}
	if other.Stream.BaseURL != "" {
		cfg.Stream.BaseURL = other.Stream.BaseURL
	}
	for k, v := range other.Stream.Headers {
		cfg.Stream.Headers[k] = v
	}
}

// applyEnvOverrides applies TARANG_* environment variable overrides,
// the last and highest-priority layer.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TARANG_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.BM25.K1 = f
		}
	}
	if v := os.Getenv("TARANG_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.BM25.B = f
		}
	}
	if v := os.Getenv("TARANG_RETRIEVAL_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retrieval.Hops = n
		}
	}
	if v := os.Getenv("TARANG_RETRIEVAL_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.MaxChunks = n
		}
	}
	if v := os.Getenv("TARANG_RETRIEVAL_MAX_SIGNATURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retrieval.MaxSignatures = n
		}
	}
	if v := os.Getenv("TARANG_CHECKPOINT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Execution.CheckpointInterval = d
		}
	}
	if v := os.Getenv("TARANG_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Execution.Deadline = d
		}
	}
	if v := os.Getenv("TARANG_SHELL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Execution.ShellTimeout = d
		}
	}
	if v := os.Getenv("TARANG_STREAM_BASE_URL"); v != "" {
		cfg.Stream.BaseURL = v
	}
	if v := os.Getenv("TARANG_STREAM_AUTH_TOKEN"); v != "" {
		cfg.Stream.Headers["Authorization"] = "Bearer " + v
	}
	if v := os.Getenv("TARANG_STREAM_OPENROUTER_KEY"); v != "" {
		cfg.Stream.Headers["X-OpenRouter-Key"] = v
	}
}

// Validate reports a descriptive error for any structurally invalid
// configuration value.
func (c *Config) Validate() error {
	if c.BM25.K1 <= 0 {
		return fmt.Errorf("bm25.k1 must be positive, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be between 0 and 1, got %f", c.BM25.B)
	}
	if c.Retrieval.Hops < 0 {
		return fmt.Errorf("retrieval.hops must be non-negative, got %d", c.Retrieval.Hops)
	}
	if c.Retrieval.MaxChunks <= 0 {
		return fmt.Errorf("retrieval.max_chunks must be positive, got %d", c.Retrieval.MaxChunks)
	}
	if c.Retrieval.MaxSignatures <= 0 {
		return fmt.Errorf("retrieval.max_signatures must be positive, got %d", c.Retrieval.MaxSignatures)
	}
	if c.Execution.CheckpointInterval <= 0 {
		return fmt.Errorf("execution.checkpoint_interval must be positive, got %s", c.Execution.CheckpointInterval)
	}
	if c.Execution.Deadline <= 0 {
		return fmt.Errorf("execution.deadline must be positive, got %s", c.Execution.Deadline)
	}
	if c.Execution.ShellTimeout <= 0 {
		return fmt.Errorf("execution.shell_timeout must be positive, got %s", c.Execution.ShellTimeout)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file, e.g. for a CLI
// init command scaffolding a project-local override.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .tarang.yaml/.yml override file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		for _, name := range projectConfigNames {
			if fileExists(filepath.Join(currentDir, name)) {
				return currentDir, nil
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
