package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/meysamhadeli/docai/embedding/contracts"
	"github.com/zeebo/xxh3"
)

// DefaultEmbeddingCacheSize is the default number of embeddings kept in memory.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an embedder with an LRU cache keyed by text and model.
// Identifier queries repeat often across the files of one batch.
type CachedEmbedder struct {
	inner contracts.IEmbedder
	cache *lru.Cache[uint64, []float32]
}

var _ contracts.IEmbedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner contracts.IEmbedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[uint64, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) uint64 {
	return xxh3.HashString(text + "\x00" + c.inner.ModelName())
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Close() error { return c.inner.Close() }

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
