package chunk

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"

	domchunk "github.com/kailas-cloud/faqbot/internal/domain/chunk"
)

// MemoryStore is a brute-force cosine vector store held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	bySource map[string][]domchunk.Chunk
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySource: make(map[string][]domchunk.Chunk)}
}

// Upsert appends chunks to their sources.
func (m *MemoryStore) Upsert(_ context.Context, chunks []domchunk.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		k := domchunk.SourceKey(c.SourceType, c.SourceID)
		m.bySource[k] = append(m.bySource[k], c)
	}
	return nil
}

// DeleteSource drops every chunk of (sourceType, sourceID).
func (m *MemoryStore) DeleteSource(_ context.Context, sourceType, sourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := domchunk.SourceKey(sourceType, sourceID)
	n := len(m.bySource[k])
	delete(m.bySource, k)
	return n, nil
}

// Nearest returns up to limit chunks with cosine similarity >= minSimilarity, most similar first.
func (m *MemoryStore) Nearest(
	_ context.Context, vec []float32, limit int, minSimilarity float64,
) ([]domchunk.Scored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domchunk.Scored
	for _, chunks := range m.bySource {
		for _, c := range chunks {
			sim := Cosine(vec, c.Embedding)
			if sim < minSimilarity {
				continue
			}
			c.Embedding = nil
			out = append(out, domchunk.Scored{Chunk: c, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Cosine returns the cosine similarity of a and b, 0 when either is zero or
// their dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
