package memory

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder memoises an Embedder by text and collapses concurrent
// requests for the same text into one upstream call.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
	group singleflight.Group
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// NewCachedEmbedder caches up to size embeddings. A non-positive size
// disables caching and returns inner unchanged.
func NewCachedEmbedder(inner Embedder, size int64) (Embedder, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
		Metrics:     true,

		// cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return clone(v.([]float32)), nil
	}

	v, err, _ := c.group.Do(text, func() (interface{}, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Set(text, vec, 1)
		c.cache.Wait()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]float32)), nil
}

// Stats reports hits and misses since creation.
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{Hits: c.cache.Metrics.Hits(), Misses: c.cache.Metrics.Misses()}
}

func (c *CachedEmbedder) Close() {
	c.cache.Close()
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
