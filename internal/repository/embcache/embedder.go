package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/db"
	"github.com/kailas-cloud/faqbot/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder keeps vectors in the key-value store so re-ingesting an
// unchanged document, or a repeated question, costs no provider tokens.
// Cache failures are logged and never fail the embedding itself.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	namespace  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. namespace (usually the model name) is part
// of the key so switching models never serves stale vectors. cacheTotal has
// the label "result" ("hit"/"miss") and may be nil.
func New(
	inner domain.Embedder,
	s store,
	namespace string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		namespace:  namespace,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns the cached vector for text, or embeds and caches it. Hits
// report zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	data, err := c.store.Get(ctx, key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.logger.Warn("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
	}
	if vec, ok := c.decode(key, data); ok {
		c.count("hit", 1)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss", 1)

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(ctx, key, result.Embedding)
	return result, nil
}

// BatchEmbed reads every text's vector in one MGET and embeds only the
// misses, in a single batch. Repeated texts are embedded once.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	cached, err := c.store.MGet(ctx, keys...)
	if err != nil {
		c.logger.Warn("Failed to read cached embeddings", zap.Int("count", len(keys)), zap.Error(err))
		cached = nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	pending := map[string][]int{} // key -> positions waiting for it
	var missKeys, missTexts []string
	for i, key := range keys {
		var data []byte
		if cached != nil {
			data = cached[i]
		}
		if vec, ok := c.decode(key, data); ok {
			out.Embeddings[i] = vec
			continue
		}
		if _, seen := pending[key]; !seen {
			missKeys = append(missKeys, key)
			missTexts = append(missTexts, texts[i])
		}
		pending[key] = append(pending[key], i)
	}
	c.count("hit", len(texts)-len(missTexts))
	c.count("miss", len(missTexts))

	if len(missTexts) == 0 {
		return out, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(missTexts), err)
	}
	for j, key := range missKeys {
		for _, i := range pending[key] {
			out.Embeddings[i] = res.Embeddings[j]
		}
		c.put(ctx, key, res.Embeddings[j])
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) count(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

// decode turns a cached value into a vector. Empty and corrupt values are misses.
func (c *CachedEmbedder) decode(key string, data []byte) ([]float32, bool) {
	if len(data) == 0 {
		return nil, false
	}
	if len(data)%4 != 0 {
		c.logger.Warn("Invalid cached embedding", zap.String("key", key), zap.Int("len", len(data)))
		return nil, false
	}
	return db.DecodeVector(string(data)), true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
