package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph parameters. M and EfSearch trade recall against build and
// query cost; Ml is the level generation factor (1/ln(M)).
const (
	hnswM        = 16
	hnswEfSearch = 20
	hnswMl       = 0.25
)

// hnswIndex maps record IDs onto a coder/hnsw graph keyed by uint64.
//
// Deletion is lazy: coder/hnsw corrupts neighbor lists when the last node
// is removed, so deleted IDs are only orphaned in the mappings and their
// nodes stay in the graph. Searches over-fetch by the orphan count and
// filter. Once every ID is gone the graph is rebuilt from scratch, which
// is the state every full-replacement ingestion run passes through, so
// orphans never survive a re-index.
type hnswIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	ids     map[string]uint64 // record ID -> graph key
	keys    map[uint64]string // graph key -> record ID
	nextKey uint64
	dims    int
	path    string // empty for in-memory
}

// hnswMeta is the gob-encoded sidecar persisted next to the graph file.
type hnswMeta struct {
	IDs     map[string]uint64
	NextKey uint64
	Dims    int
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = hnswM
	g.EfSearch = hnswEfSearch
	g.Ml = hnswMl
	return g
}

// newHNSWIndex opens the index at path, loading a persisted graph when one
// exists. A persisted graph with different dimensions is discarded with a
// warning; the records survive in SQLite and a re-ingestion rebuilds the
// vectors. An empty path keeps the index in memory.
func newHNSWIndex(path string, dims int) (*hnswIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector index needs positive dimensions, got %d", dims)
	}

	idx := &hnswIndex{
		graph: newGraph(),
		ids:   make(map[string]uint64),
		keys:  make(map[uint64]string),
		dims:  dims,
		path:  path,
	}

	if path == "" {
		return idx, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return idx, nil
	}

	if err := idx.load(); err != nil {
		slog.Warn("vector_index_load_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		idx.reset()
		return idx, nil
	}

	if idx.dims != dims {
		slog.Warn("vector_index_dimensions_changed",
			slog.Int("stored", idx.dims),
			slog.Int("embedder", dims))
		idx.reset()
		idx.dims = dims
	}

	return idx, nil
}

// reset drops all nodes and mappings.
func (h *hnswIndex) reset() {
	h.graph = newGraph()
	h.ids = make(map[string]uint64)
	h.keys = make(map[uint64]string)
	h.nextKey = 0
}

// add inserts or replaces the vector for id.
func (h *hnswIndex) add(id string, vec []float32) error {
	if len(vec) != h.dims {
		return ErrDimensionMismatch{Expected: h.dims, Got: len(vec)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Replacing an ID orphans its old node rather than deleting it.
	if oldKey, ok := h.ids[id]; ok {
		delete(h.keys, oldKey)
		delete(h.ids, id)
	}

	key := h.nextKey
	h.nextKey++

	h.graph.Add(hnsw.MakeNode(key, vec))
	h.ids[id] = key
	h.keys[key] = id
	return nil
}

// search returns up to k live record IDs nearest to query, with their
// cosine distances, closest first.
func (h *hnswIndex) search(query []float32, k int) ([]string, []float64, error) {
	if len(query) != h.dims {
		return nil, nil, ErrDimensionMismatch{Expected: h.dims, Got: len(query)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.ids) == 0 || k <= 0 {
		return nil, nil, nil
	}

	// Orphaned nodes still occupy result slots; fetch extra to compensate.
	fetch := k + (h.graph.Len() - len(h.ids))
	if fetch > h.graph.Len() {
		fetch = h.graph.Len()
	}

	nodes := h.graph.Search(query, fetch)

	ids := make([]string, 0, k)
	distances := make([]float64, 0, k)
	for _, node := range nodes {
		id, ok := h.keys[node.Key]
		if !ok {
			continue // lazily deleted
		}
		ids = append(ids, id)
		distances = append(distances, float64(h.graph.Distance(query, node.Value)))
		if len(ids) == k {
			break
		}
	}
	return ids, distances, nil
}

// delete orphans the given IDs. Unknown IDs are ignored.
func (h *hnswIndex) delete(ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range ids {
		if key, ok := h.ids[id]; ok {
			delete(h.keys, key)
			delete(h.ids, id)
		}
	}

	// An empty index is the one safe point to drop accumulated orphans.
	if len(h.ids) == 0 {
		h.reset()
	}
}

// count returns the number of live vectors.
func (h *hnswIndex) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}

// save atomically persists the graph and its ID mappings. A no-op for
// in-memory indexes.
func (h *hnswIndex) save() error {
	if h.path == "" {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create vector index directory: %w", err)
	}

	tmp := h.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export vector graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close vector index file: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	return h.saveMeta()
}

func (h *hnswIndex) saveMeta() error {
	metaPath := h.path + ".meta"
	tmp := metaPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector meta file: %w", err)
	}

	meta := hnswMeta{IDs: h.ids, NextKey: h.nextKey, Dims: h.dims}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode vector meta: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close vector meta file: %w", err)
	}
	return os.Rename(tmp, metaPath)
}

// load restores the graph and mappings persisted by save.
func (h *hnswIndex) load() error {
	metaFile, err := os.Open(h.path + ".meta")
	if err != nil {
		return fmt.Errorf("open vector meta file: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector meta: %w", err)
	}

	f, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("open vector index file: %w", err)
	}
	defer f.Close()

	// Import requires an io.ByteReader.
	if err := h.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import vector graph: %w", err)
	}

	h.ids = meta.IDs
	h.nextKey = meta.NextKey
	h.dims = meta.Dims
	h.keys = make(map[uint64]string, len(meta.IDs))
	for id, key := range meta.IDs {
		h.keys[key] = id
	}
	return nil
}
