package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/db"
	"github.com/kailas-cloud/faqbot/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var gotTTL time.Duration
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		gotTTL = ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if gotTTL != time.Hour {
		t.Fatalf("expected cache put with 1h TTL, got %v", gotTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := []byte(db.EncodeVector([]float32{0.4, 0.5, 0.6}))
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
	if inner.calls != 0 {
		t.Fatalf("inner embedder should not be called on hit")
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner call on corrupt cache, got %d", inner.calls)
	}
}

func TestEmbed_CacheErrorsAreNotFatal(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("cache failures must not fail Embed: %v", err)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, _ := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "test text"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
}

func TestCacheKey_NamespacedByModel(t *testing.T) {
	a := New(nil, nil, "model-a", 0, nil, zap.NewNop())
	b := New(nil, nil, "model-b", 0, nil, zap.NewNop())
	if a.cacheKey("hello") == b.cacheKey("hello") {
		t.Error("keys for different models must differ")
	}
	if a.cacheKey("hello") != a.cacheKey("hello") {
		t.Error("key must be deterministic")
	}
}

func TestBatchEmbed_EmbedsOnlyMisses(t *testing.T) {
	inner := &batchEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)

	hitKey := ce.cacheKey("cached")
	ms.mgetFn = func(_ context.Context, keys ...string) ([][]byte, error) {
		out := make([][]byte, len(keys))
		for i, k := range keys {
			if k == hitKey {
				out[i] = []byte(db.EncodeVector([]float32{42}))
			}
		}
		return out, nil
	}
	var stored []string
	ms.setFn = func(_ context.Context, key string, _ []byte, _ time.Duration) error {
		stored = append(stored, key)
		return nil
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"ab", "cached", "ab", "abcd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float32{2, 42, 2, 4}
	for i, w := range want {
		if res.Embeddings[i][0] != w {
			t.Errorf("embedding %d = %v, want [%v]", i, res.Embeddings[i], w)
		}
	}
	if len(inner.batches) != 1 || len(inner.batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of the two distinct misses", inner.batches)
	}
	if len(stored) != 2 {
		t.Errorf("stored %d vectors, want 2", len(stored))
	}
	if res.TotalTokens != 2 {
		t.Errorf("TotalTokens = %d, want 2", res.TotalTokens)
	}
}

func TestBatchEmbed_AllCachedSkipsProvider(t *testing.T) {
	inner := &batchEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.mgetFn = func(_ context.Context, keys ...string) ([][]byte, error) {
		out := make([][]byte, len(keys))
		for i := range out {
			out[i] = []byte(db.EncodeVector([]float32{1}))
		}
		return out, nil
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batches) != 0 || len(res.Embeddings) != 2 || res.TotalTokens != 0 {
		t.Errorf("batches = %v, result = %+v", inner.batches, res)
	}
}

func TestBatchEmbed_CacheReadFailureEmbedsEverything(t *testing.T) {
	inner := &batchEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.mgetFn = func(context.Context, ...string) ([][]byte, error) {
		return nil, errors.New("connection refused")
	}

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatalf("cache failures must not fail BatchEmbed: %v", err)
	}
	if len(inner.batches) != 1 || len(res.Embeddings) != 2 {
		t.Errorf("batches = %v, embeddings = %d", inner.batches, len(res.Embeddings))
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{err: errors.New("provider down")})

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error from inner embedder")
	}
}
