package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/philippgille/chromem-go"
)

// Index backend names.
const (
	IndexHNSW  = "hnsw"
	IndexExact = "exact"
)

// NewIndex builds the index named by kind.
func NewIndex(kind string) (Index, error) {
	switch strings.ToLower(kind) {
	case "", IndexHNSW:
		return NewHNSWIndex(), nil
	case IndexExact:
		return NewChromemIndex()
	default:
		return nil, fmt.Errorf("unknown index %q", kind)
	}
}

// HNSWIndex is an approximate index over a coder/hnsw graph.
type HNSWIndex struct {
	mu    sync.Mutex
	graph *hnsw.Graph[string]
}

func NewHNSWIndex() *HNSWIndex {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	return &HNSWIndex{graph: g}
}

func (h *HNSWIndex) Add(_ context.Context, id string, vec []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph.Add(hnsw.MakeNode(id, vec))
	return nil
}

func (h *HNSWIndex) Search(_ context.Context, vec []float32, k int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}
	nodes := h.graph.Search(vec, k)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Key
	}
	return ids, nil
}

func (h *HNSWIndex) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.graph.Len()
}

// ChromemIndex is an exhaustive index over an in-memory chromem-go
// collection.
type ChromemIndex struct {
	col *chromem.Collection
}

func NewChromemIndex() (*ChromemIndex, error) {
	db := chromem.NewDB()
	// Embeddings are always supplied, so the collection never embeds.
	col, err := db.CreateCollection("memories", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{col: col}, nil
}

func (c *ChromemIndex) Add(ctx context.Context, id string, vec []float32) error {
	doc := chromem.Document{
		ID:        id,
		Embedding: append([]float32(nil), vec...),
	}
	if err := c.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, vec []float32, k int) ([]string, error) {
	// chromem-go requires nResults <= collection size
	n := min(k, c.col.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := c.col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

func (c *ChromemIndex) Len() int {
	return c.col.Count()
}
