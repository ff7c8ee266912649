// Package memory holds the conversational vector memory: a durable log of
// every remembered message plus an in-memory nearest-neighbour index that is
// rebuilt from the log at startup.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/haven/internal/store"
)

// SeedMessage is stored when a brand new memory is opened so that the store
// is never empty.
const SeedMessage = "Initial message"

const minCandidates = 10

// ErrDimensionMismatch is returned when an embedding's width differs from the
// width fixed by the first record.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// WithTimeout bounds every Embed call made through e by d. A non-positive d
// returns e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return e.Embed(ctx, text)
	})
}

// Index finds candidate neighbours by id. Implementations may be approximate;
// Store re-ranks their output by exact cosine similarity.
type Index interface {
	Add(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, vec []float32, k int) ([]string, error)
	Len() int
}

// Match is one search hit.
type Match struct {
	Content string
	Score   float32
}

type entry struct {
	seq     int
	content string
	vec     []float32
}

// Store is the vector memory. It is safe for concurrent use.
type Store struct {
	log      store.MemoryLog
	index    Index
	embedder Embedder

	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
	dim     int

	now   func() time.Time
	newID func() string
}

// Open replays the durable log into index. An empty log is seeded with
// SeedMessage.
func Open(ctx context.Context, log store.MemoryLog, index Index, embedder Embedder) (*Store, error) {
	s := &Store{
		log:      log,
		index:    index,
		embedder: embedder,
		entries:  make(map[string]*entry),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	records, err := log.LoadMemories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	for _, rec := range records {
		if len(rec.Vector) == 0 {
			return nil, fmt.Errorf("memory %s has no vector", rec.ID)
		}
		if s.dim == 0 {
			s.dim = len(rec.Vector)
		} else if len(rec.Vector) != s.dim {
			return nil, fmt.Errorf("memory %s: %w (got %d, want %d)", rec.ID, ErrDimensionMismatch, len(rec.Vector), s.dim)
		}
		if err := s.index.Add(ctx, rec.ID, rec.Vector); err != nil {
			return nil, fmt.Errorf("index memory %s: %w", rec.ID, err)
		}
		s.track(rec.ID, rec.Content, rec.Vector)
	}

	if len(s.order) == 0 {
		if err := s.Insert(ctx, SeedMessage); err != nil {
			return nil, fmt.Errorf("seed memory: %w", err)
		}
	}
	return s, nil
}

func (s *Store) track(id, content string, vec []float32) {
	e := &entry{seq: len(s.order), content: content, vec: vec}
	s.entries[id] = e
	s.order = append(s.order, e)
}

// Insert embeds text and appends it. The record is durable before the index
// sees it; a failed append leaves the index untouched. A failed index add
// still returns an error, but the record stays tracked so the live store
// matches what a reopen replays.
func (s *Store) Insert(ctx context.Context, text string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return errors.New("embed: empty vector")
	}
	vec = append([]float32(nil), vec...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(vec) != s.dim {
		return fmt.Errorf("%w (got %d, want %d)", ErrDimensionMismatch, len(vec), s.dim)
	}

	rec := store.Record{
		ID:        s.newID(),
		Content:   text,
		Vector:    vec,
		CreatedAt: s.now().UTC(),
	}
	if err := s.log.AppendMemory(ctx, rec); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	s.dim = len(vec)
	s.track(rec.ID, text, vec)
	if err := s.index.Add(ctx, rec.ID, vec); err != nil {
		return fmt.Errorf("index memory: %w", err)
	}
	return nil
}

// Search returns up to k stored messages ordered from most to least similar.
func (s *Store) Search(ctx context.Context, query string, k int) ([]string, error) {
	matches, err := s.SearchScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Content
	}
	return out, nil
}

// SearchScored is Search with cosine similarity scores attached.
func (s *Store) SearchScored(ctx context.Context, query string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vec) != s.dim {
		return nil, fmt.Errorf("%w (got %d, want %d)", ErrDimensionMismatch, len(vec), s.dim)
	}
	n := min(k, len(s.order))
	if n == 0 {
		return []Match{}, nil
	}

	// widen the candidate pool; exact re-ranking trims it back to n
	ids, err := s.index.Search(ctx, vec, min(len(s.order), max(2*n, minCandidates)))
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	candidates := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) < n || s.index.Len() < len(s.order) {
		// approximate index came up short or missed an add; scan everything
		candidates = s.order
	}
	return rank(vec, candidates, n), nil
}

func rank(query []float32, candidates []*entry, n int) []Match {
	type scored struct {
		e     *entry
		score float32
	}
	all := make([]scored, len(candidates))
	for i, e := range candidates {
		all[i] = scored{e: e, score: Cosine(query, e.vec)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].e.seq < all[j].e.seq
	})
	if len(all) > n {
		all = all[:n]
	}

	out := make([]Match, len(all))
	for i, sc := range all {
		out[i] = Match{Content: sc.e.content, Score: sc.score}
	}
	return out
}

// Len is the number of stored records, seed included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Dim is the embedding width, fixed by the first record.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Close closes the durable log.
func (s *Store) Close() error {
	return s.log.Close()
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
