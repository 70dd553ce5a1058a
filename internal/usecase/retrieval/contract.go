package retrieval

import (
	"context"

	"github.com/kailas-cloud/faqbot/internal/domain/chunk"
)

// VectorStore persists chunks with their embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []chunk.Chunk) error
	DeleteSource(ctx context.Context, sourceType, sourceID string) (int, error)
	Nearest(ctx context.Context, vec []float32, limit int, minSimilarity float64) ([]chunk.Scored, error)
}
