package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/kailas-cloud/faqbot/internal/db"
	"github.com/kailas-cloud/faqbot/internal/domain"
	domchunk "github.com/kailas-cloud/faqbot/internal/domain/chunk"
)

const (
	redisIndexName = "faqbot-chunks"
	vectorField    = "vector"
)

var chunkKeyPrefix = domain.KeyPrefix + "chunk:"

var returnFields = []string{
	"id", "document_id", "source_type", "source_id", "title", "content", "chunk_index", "metadata",
}

// redisStore is the consumer interface for the Redis vector store (ISP).
type redisStore interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Ping(ctx context.Context) error
}

// HNSWConfig holds HNSW build and query parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// RedisStore keeps chunks as hashes under an FT vector index.
type RedisStore struct {
	store redisStore
	dim   int
	hnsw  HNSWConfig
}

// NewRedisStore creates a Redis vector store for vectors of dimension dim.
func NewRedisStore(s redisStore, dim int, hnsw HNSWConfig) *RedisStore {
	if hnsw.M <= 0 {
		hnsw.M = 16
	}
	if hnsw.EFConstruct <= 0 {
		hnsw.EFConstruct = 200
	}
	return &RedisStore{store: s, dim: dim, hnsw: hnsw}
}

// EnsureIndex creates the chunk index when it does not exist yet.
func (r *RedisStore) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, redisIndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(redisIndexName).
		Prefix(chunkKeyPrefix).
		Tag("source_type", "").
		Tag("source_id", "").
		Text("title").
		Numeric("chunk_index").
		VectorHNSW(vectorField, r.dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes chunks with their embeddings in one round-trip.
func (r *RedisStore) Upsert(ctx context.Context, chunks []domchunk.Chunk) error {
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) != r.dim {
			return fmt.Errorf("%w: chunk %s has dimension %d, want %d",
				domain.ErrInvalidInput, c.ID, len(c.Embedding), r.dim)
		}
		fields, err := chunkToHash(c)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: chunkKey(c), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset chunks: %w", err)
	}
	return nil
}

// DeleteSource removes every chunk ingested from (sourceType, sourceID).
func (r *RedisStore) DeleteSource(ctx context.Context, sourceType, sourceID string) (int, error) {
	n, err := r.store.DeletePrefix(ctx, chunkKeyPrefix+sourceHash(sourceType, sourceID)+":")
	if err != nil {
		return n, fmt.Errorf("delete source: %w", err)
	}
	return n, nil
}

// Nearest returns up to limit chunks with similarity >= minSimilarity, most similar first.
func (r *RedisStore) Nearest(
	ctx context.Context, vec []float32, limit int, minSimilarity float64,
) ([]domchunk.Scored, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    redisIndexName,
		VectorField:  vectorField,
		Vector:       vec,
		K:            limit,
		EFRuntime:    r.hnsw.EFRuntime,
		MinScore:     minSimilarity,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]domchunk.Scored, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, domchunk.Scored{Chunk: hashToChunk(e.Fields), Similarity: e.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func chunkKey(c *domchunk.Chunk) string {
	return chunkKeyPrefix + sourceHash(c.SourceType, c.SourceID) + ":" + c.DocumentID + ":" + strconv.Itoa(c.ChunkIndex)
}

// sourceHash keeps user-supplied source ids out of SCAN glob patterns.
func sourceHash(sourceType, sourceID string) string {
	h := sha256.Sum256([]byte(domchunk.SourceKey(sourceType, sourceID)))
	return hex.EncodeToString(h[:8])
}

func chunkToHash(c *domchunk.Chunk) (map[string]string, error) {
	meta := "{}"
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	return map[string]string{
		"id":          c.ID,
		"document_id": c.DocumentID,
		"source_type": c.SourceType,
		"source_id":   c.SourceID,
		"title":       c.Title,
		"content":     c.Content,
		"chunk_index": strconv.Itoa(c.ChunkIndex),
		"metadata":    meta,
		vectorField:   db.EncodeVector(c.Embedding),
	}, nil
}

func hashToChunk(f map[string]string) domchunk.Chunk {
	idx, _ := strconv.Atoi(f["chunk_index"])
	var meta map[string]string
	if raw := f["metadata"]; raw != "" && raw != "{}" {
		_ = json.Unmarshal([]byte(raw), &meta)
	}
	return domchunk.Chunk{
		ID:         f["id"],
		DocumentID: f["document_id"],
		SourceType: f["source_type"],
		SourceID:   f["source_id"],
		Title:      f["title"],
		Content:    f["content"],
		ChunkIndex: idx,
		Metadata:   meta,
	}
}
