package embedding

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"

	"quorum-ai/internal/domain"
)

var _ domain.EmbeddingProvider = (*CachedProvider)(nil)

const defaultCacheSize = 256

// CachedProvider memoizes embeddings from an inner provider with an LRU
// cache keyed by text hash. Query embeddings repeat often across rounds
// when users refine the same question; caching avoids re-embedding.
type CachedProvider struct {
	inner domain.EmbeddingProvider

	mu      sync.Mutex
	maxSize int
	order   *list.List               // front = most recently used
	entries map[uint64]*list.Element // text hash -> order element
}

type cacheEntry struct {
	key    uint64
	vector []float32
}

// NewCachedProvider wraps inner with an LRU embedding cache. A size of 0
// falls back to the default.
func NewCachedProvider(inner domain.EmbeddingProvider, size int) *CachedProvider {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &CachedProvider{
		inner:   inner,
		maxSize: size,
		order:   list.New(),
		entries: make(map[uint64]*list.Element, size),
	}
}

// Embed implements domain.EmbeddingProvider. Cached texts are served from
// memory; only misses reach the inner provider, in a single batch.
func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	p.mu.Lock()
	for i, text := range texts {
		if vec, ok := p.lookup(hashText(text)); ok {
			result[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	p.mu.Unlock()

	if len(missTexts) == 0 {
		return result, nil
	}

	vectors, err := p.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	for j, vec := range vectors {
		result[missIdx[j]] = vec
		p.store(hashText(missTexts[j]), vec)
	}
	p.mu.Unlock()

	return result, nil
}

// lookup returns a cached vector and promotes it. Caller holds mu.
func (p *CachedProvider) lookup(key uint64) ([]float32, bool) {
	elem, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	p.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

// store inserts a vector, evicting the least recently used entry when the
// cache is full. Caller holds mu.
func (p *CachedProvider) store(key uint64, vector []float32) {
	if elem, ok := p.entries[key]; ok {
		p.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	if p.order.Len() >= p.maxSize {
		oldest := p.order.Back()
		if oldest != nil {
			p.order.Remove(oldest)
			delete(p.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	p.entries[key] = p.order.PushFront(&cacheEntry{key: key, vector: vector})
}

// Len reports the number of cached embeddings.
func (p *CachedProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Dimensions implements domain.EmbeddingProvider.
func (p *CachedProvider) Dimensions() int { return p.inner.Dimensions() }

// Name implements domain.EmbeddingProvider.
func (p *CachedProvider) Name() string { return p.inner.Name() }

func hashText(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}
