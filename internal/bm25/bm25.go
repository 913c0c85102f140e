package bm25

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/tarang-dev/tarang/internal/chunk"
	"github.com/tarang-dev/tarang/internal/tokenize"
)

const (
	codeTokenizerName = "tarang_code_tokenizer"
	codeAnalyzerName  = "tarang_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
}

// blobVersion is bumped whenever the on-disk envelope format changes
// incompatibly; Load rejects any blob whose version doesn't match.
const blobVersion = "1"

// blobEnvelope is the gob-encoded structure written to the bm25.blob
// path. It is the one binary blob the index persists as -
// the Bleve index itself is always rebuilt in memory from Chunks, so
// there is no separate on-disk Bleve segment directory to keep in sync.
type blobEnvelope struct {
	Version string
	Chunks  []*chunk.Chunk
}

// BleveIndex is the lexical index, backed by an in-memory Bleve index for
// scoring and a plain Go map for the id -> chunk and file -> chunks
// relations retrieval depends on.
type BleveIndex struct {
	mu     sync.RWMutex
	config Config
	index  bleve.Index
	corpus map[string]*chunk.Chunk
	order  []string // insertion order, for GetChunksForFile and re-fit stability
	closed bool
}

// New constructs an empty lexical index.
func New(config Config) (*BleveIndex, error) {
	idx, err := newBleveMemIndex()
	if err != nil {
		return nil, err
	}
	return &BleveIndex{
		config: config,
		index:  idx,
		corpus: make(map[string]*chunk.Chunk),
	}, nil
}

func newBleveMemIndex() (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("bm25: failed to build index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("bm25: failed to create in-memory index: %w", err)
	}
	return idx, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

type bleveDoc struct {
	Content string `json:"content"`
}

func (b *BleveIndex) Build(ctx context.Context, chunks []*chunk.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bm25: index is closed")
	}

	newIdx, err := newBleveMemIndex()
	if err != nil {
		return err
	}
	if b.index != nil {
		_ = b.index.Close()
	}
	b.index = newIdx
	b.corpus = make(map[string]*chunk.Chunk, len(chunks))
	b.order = b.order[:0]

	return b.indexChunksLocked(chunks)
}

func (b *BleveIndex) indexChunksLocked(chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		if _, exists := b.corpus[c.ID]; !exists {
			b.order = append(b.order, c.ID)
		}
		b.corpus[c.ID] = c
		if err := batch.Index(c.ID, bleveDoc{Content: c.Content}); err != nil {
			return fmt.Errorf("bm25: failed to index chunk %s: %w", c.ID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *BleveIndex) Query(ctx context.Context, q string, k int) ([]Result, error) {
	tokens := tokenize.Tokenize(q)
	if len(tokens) == 0 {
		return []Result{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("bm25: index is closed")
	}

	query := bleve.NewMatchQuery(strings.Join(tokens, " "))
	query.SetField("content")

	req := bleve.NewSearchRequest(query)
	req.Size = len(b.corpus)
	if req.Size == 0 {
		return []Result{}, nil
	}

	searchResult, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bm25: search failed: %w", err)
	}

	results := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		if hit.Score <= 0 {
			continue
		}
		c, ok := b.corpus[hit.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: c, Score: hit.Score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (b *BleveIndex) AddChunks(ctx context.Context, chunks []*chunk.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bm25: index is closed")
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, exists := b.corpus[c.ID]; exists {
			ids = append(ids, c.ID)
		}
	}
	if err := b.deleteLocked(ids); err != nil {
		return err
	}
	return b.indexChunksLocked(chunks)
}

func (b *BleveIndex) RemoveChunks(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bm25: index is closed")
	}
	return b.deleteLocked(ids)
}

func (b *BleveIndex) deleteLocked(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	toRemove := make(map[string]bool, len(ids))
	for _, id := range ids {
		batch.Delete(id)
		delete(b.corpus, id)
		toRemove[id] = true
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("bm25: failed to delete chunks: %w", err)
	}

	filtered := b.order[:0:0]
	for _, id := range b.order {
		if !toRemove[id] {
			filtered = append(filtered, id)
		}
	}
	b.order = filtered
	return nil
}

func (b *BleveIndex) GetChunksForFile(path string) []*chunk.Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*chunk.Chunk
	for _, id := range b.order {
		if c := b.corpus[id]; c != nil && c.File == path {
			out = append(out, c)
		}
	}
	return out
}

func (b *BleveIndex) GetChunk(id string) (*chunk.Chunk, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.corpus[id]
	return c, ok
}

func (b *BleveIndex) AllIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	return ids
}

func (b *BleveIndex) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var totalLen int
	for _, id := range b.order {
		if c := b.corpus[id]; c != nil {
			totalLen += len(c.Tokens)
		}
	}
	avg := 0.0
	if len(b.order) > 0 {
		avg = float64(totalLen) / float64(len(b.order))
	}

	terms := make(map[string]struct{})
	for _, id := range b.order {
		if c := b.corpus[id]; c != nil {
			for _, t := range c.Tokens {
				terms[t] = struct{}{}
			}
		}
	}

	return Stats{
		TotalChunks:  len(b.order),
		TermCount:    len(terms),
		AvgDocLength: avg,
	}
}

func (b *BleveIndex) Save(path string) error {
	b.mu.RLock()
	chunks := make([]*chunk.Chunk, 0, len(b.order))
	for _, id := range b.order {
		if c := b.corpus[id]; c != nil {
			chunks = append(chunks, c)
		}
	}
	b.mu.RUnlock()

	envelope := blobEnvelope{Version: blobVersion, Chunks: chunks}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope); err != nil {
		return fmt.Errorf("bm25: failed to encode blob: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("bm25: failed to write blob: %w", err)
	}
	return os.Rename(tmp, path)
}

func (b *BleveIndex) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bm25: blob unreadable: %w", err)
	}

	var envelope blobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&envelope); err != nil {
		return fmt.Errorf("bm25: blob corrupt: %w", err)
	}
	if envelope.Version != blobVersion {
		return fmt.Errorf("bm25: blob version mismatch: got %q want %q", envelope.Version, blobVersion)
	}

	return b.Build(context.Background(), envelope.Chunks)
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

var _ Index = (*BleveIndex)(nil)

func codeTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

// codeTokenizer adapts internal/tokenize.Tokenize to Bleve's Tokenizer
// interface so query-time and index-time term extraction share one
// implementation.
type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	terms := tokenize.Tokenize(text)

	stream := make(analysis.TokenStream, 0, len(terms))
	offset := 0
	for i, term := range terms {
		start := strings.Index(strings.ToLower(text[offset:]), term)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(term)

		stream = append(stream, &analysis.Token{
			Term:     []byte(term),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}
