package embedding

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/meysamhadeli/docai/embedding/contracts"
	docerrors "github.com/meysamhadeli/docai/internal/errors"
	"github.com/meysamhadeli/docai/internal/fileutil"
	"github.com/meysamhadeli/docai/models"
	"github.com/zeebo/xxh3"
)

// DefaultIndexFileName is the graph file inside the index directory.
const DefaultIndexFileName = "descriptions.hnsw"

// overFetchFactor widens graph searches so tag filtering still yields k results.
const overFetchFactor = 4

type indexEntry struct {
	Key  uint64
	Text string
	Tags map[string]string
}

type indexMetadata struct {
	Entries    map[string]indexEntry
	GraphKeys  []uint64
	Dimensions int
	Model      string
}

// HNSWIndex is an IEmbeddingIndex over an in-memory HNSW graph persisted next
// to a gob metadata file. Replaced texts are orphaned in the graph rather than
// deleted.
type HNSWIndex struct {
	mu       sync.RWMutex
	embedder contracts.IEmbedder
	graph    *hnsw.Graph[uint64]
	path     string
	dims     int

	entries   map[string]indexEntry
	keyToID   map[uint64]string
	graphKeys map[uint64]bool

	dirty  bool
	closed bool
}

var _ contracts.IEmbeddingIndex = (*HNSWIndex)(nil)

// DefaultIndexPath returns the graph path for a repository.
func DefaultIndexPath(indexDir string) string {
	return filepath.Join(indexDir, DefaultIndexFileName)
}

func newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return graph
}

// OpenHNSWIndex loads the index stored at path, or starts an empty one when
// nothing is stored yet. A stored index built by another model or with other
// dimensions is discarded with a warning; it is rebuilt from descriptions.
func OpenHNSWIndex(path string, embedder contracts.IEmbedder) (*HNSWIndex, error) {
	idx := &HNSWIndex{
		embedder:  embedder,
		graph:     newGraph(),
		path:      path,
		dims:      embedder.Dimensions(),
		entries:   make(map[string]indexEntry),
		keyToID:   make(map[uint64]string),
		graphKeys: make(map[uint64]bool),
	}

	meta, err := readMetadata(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		slog.Warn("embedding index metadata unreadable, starting fresh",
			slog.String("path", path), slog.String("error", err.Error()))
		idx.dirty = true
		return idx, nil
	}

	if meta.Model != embedder.ModelName() || (idx.dims > 0 && meta.Dimensions != idx.dims) {
		slog.Warn("embedding index built with a different model, starting fresh",
			slog.String("code", docerrors.ErrCodeDimensionMismatch),
			slog.String("stored_model", meta.Model),
			slog.Int("stored_dimensions", meta.Dimensions),
			slog.String("model", embedder.ModelName()),
			slog.Int("dimensions", idx.dims))
		idx.dirty = true
		return idx, nil
	}

	if len(meta.GraphKeys) > 0 {
		file, err := os.Open(path)
		if err != nil {
			slog.Warn("embedding index graph missing, starting fresh", slog.String("path", path))
			idx.dirty = true
			return idx, nil
		}
		defer file.Close()

		if err := idx.graph.Import(bufio.NewReader(file)); err != nil {
			slog.Warn("embedding index graph corrupt, starting fresh",
				slog.String("path", path), slog.String("error", err.Error()))
			idx.graph = newGraph()
			idx.dirty = true
			return idx, nil
		}
	}

	idx.dims = meta.Dimensions
	for _, key := range meta.GraphKeys {
		idx.graphKeys[key] = true
	}
	for id, entry := range meta.Entries {
		idx.entries[id] = entry
		idx.keyToID[entry.Key] = id
	}

	return idx, nil
}

func readMetadata(path string) (*indexMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var meta indexMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode index metadata: %w", err)
	}
	return &meta, nil
}

func entryKey(id, text string) uint64 {
	return xxh3.HashString(id + "\x00" + text)
}

// Insert embeds text and stores it under id, replacing any previous text.
// Empty texts are ignored.
func (idx *HNSWIndex) Insert(ctx context.Context, id string, text string, tags map[string]string) error {
	if text == "" {
		return nil
	}
	key := entryKey(id, text)

	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return fmt.Errorf("index is closed")
	}
	if existing, ok := idx.entries[id]; ok && existing.Key == key {
		existing.Tags = copyTags(tags)
		idx.entries[id] = existing
		idx.dirty = true
		idx.mu.Unlock()
		return nil
	}
	idx.mu.Unlock()

	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return docerrors.ExternalError(docerrors.ErrCodeEmbeddingFailed, "failed to embed text", err).
			WithDetail("id", id)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkDimensions(len(vec)); err != nil {
		return err
	}

	if old, ok := idx.entries[id]; ok {
		delete(idx.keyToID, old.Key)
	}
	if !idx.graphKeys[key] {
		normalized := make([]float32, len(vec))
		copy(normalized, vec)
		normalize(normalized)
		idx.graph.Add(hnsw.MakeNode(key, normalized))
		idx.graphKeys[key] = true
	}

	idx.entries[id] = indexEntry{Key: key, Text: text, Tags: copyTags(tags)}
	idx.keyToID[key] = id
	idx.dirty = true
	return nil
}

func (idx *HNSWIndex) checkDimensions(n int) error {
	if idx.dims == 0 {
		idx.dims = n
		return nil
	}
	if n != idx.dims {
		return docerrors.New(docerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, index expects %d", n, idx.dims), nil)
	}
	return nil
}

// Query returns the k entries closest to text whose tags contain tagFilter.
func (idx *HNSWIndex) Query(ctx context.Context, text string, k int, tagFilter map[string]string) ([]models.Snippet, error) {
	if k <= 0 || text == "" {
		return nil, nil
	}

	idx.mu.RLock()
	closed, empty := idx.closed, len(idx.entries) == 0
	idx.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("index is closed")
	}
	if empty {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, docerrors.ExternalError(docerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(vec) != idx.dims {
		return nil, docerrors.New(docerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index expects %d", len(vec), idx.dims), nil)
	}

	query := make([]float32, len(vec))
	copy(query, vec)
	normalize(query)

	fetch := k*overFetchFactor + len(idx.graphKeys) - len(idx.entries)
	if fetch > idx.graph.Len() {
		fetch = idx.graph.Len()
	}

	var snippets []models.Snippet
	for _, node := range idx.graph.Search(query, fetch) {
		id, ok := idx.keyToID[node.Key]
		if !ok {
			continue
		}
		entry := idx.entries[id]
		if !matchesTags(entry.Tags, tagFilter) {
			continue
		}
		distance := idx.graph.Distance(query, node.Value)
		snippets = append(snippets, models.Snippet{
			ID:    id,
			Text:  entry.Text,
			Score: 1.0 - distance/2.0,
			Tags:  copyTags(entry.Tags),
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		if snippets[i].Score != snippets[j].Score {
			return snippets[i].Score > snippets[j].Score
		}
		return snippets[i].ID < snippets[j].ID
	})
	if len(snippets) > k {
		snippets = snippets[:k]
	}
	return snippets, nil
}

// Contains reports whether an entry is stored under id.
func (idx *HNSWIndex) Contains(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[id]
	return ok
}

// Len returns the number of live entries.
func (idx *HNSWIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Save writes the graph and metadata atomically when anything changed.
func (idx *HNSWIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("index is closed")
	}
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	if len(idx.graphKeys) > 0 {
		var graphBuf bytes.Buffer
		if err := idx.graph.Export(&graphBuf); err != nil {
			return fmt.Errorf("failed to export graph: %w", err)
		}
		if err := fileutil.WriteFileAtomically(idx.path, graphBuf.Bytes(), 0644); err != nil {
			return err
		}
	}

	meta := indexMetadata{
		Entries:    idx.entries,
		GraphKeys:  make([]uint64, 0, len(idx.graphKeys)),
		Dimensions: idx.dims,
		Model:      idx.embedder.ModelName(),
	}
	for key := range idx.graphKeys {
		meta.GraphKeys = append(meta.GraphKeys, key)
	}
	sort.Slice(meta.GraphKeys, func(i, j int) bool { return meta.GraphKeys[i] < meta.GraphKeys[j] })

	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("encode index metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomically(idx.path+".meta", metaBuf.Bytes(), 0644); err != nil {
		return err
	}

	idx.dirty = false
	return nil
}

// Close releases the graph. Unsaved changes are discarded.
func (idx *HNSWIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	idx.graph = nil
	return nil
}

// RemoveIndex deletes the graph and metadata files stored at path and
// reports whether anything was removed.
func RemoveIndex(path string) (bool, error) {
	removed := false
	for _, file := range []string{path, path + ".meta"} {
		err := os.Remove(file)
		if err == nil {
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to delete %s: %w", file, err)
		}
	}
	return removed, nil
}

func matchesTags(tags, filter map[string]string) bool {
	for key, want := range filter {
		if tags[key] != want {
			return false
		}
	}
	return true
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
