package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/kailas-cloud/faqbot/internal/domain"
	domchunk "github.com/kailas-cloud/faqbot/internal/domain/chunk"
)

// documentChunkModel is one chunk row. Its embedding lives in a sibling
// table so vectors can be recomputed without rewriting content.
type documentChunkModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index"`
	SourceType string    `gorm:"not null;index:idx_document_chunks_source"`
	SourceID   string    `gorm:"not null;index:idx_document_chunks_source"`
	Title      string
	Content    string `gorm:"type:text;not null"`
	ChunkIndex int    `gorm:"not null;default:0"`
	Metadata   string `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time

	Embedding *chunkEmbeddingModel `gorm:"foreignKey:ChunkID;references:ID;constraint:OnDelete:CASCADE"`
}

func (documentChunkModel) TableName() string { return "document_chunks" }

type chunkEmbeddingModel struct {
	ChunkID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Embedding pgvector.Vector `gorm:"type:vector;not null"`
	CreatedAt time.Time
}

func (chunkEmbeddingModel) TableName() string { return "chunk_embeddings" }

// PostgresStore keeps chunks in Postgres and ranks them with pgvector's cosine distance.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a Postgres vector store.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate enables pgvector and creates the chunk tables.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := p.db.WithContext(ctx).AutoMigrate(&documentChunkModel{}, &chunkEmbeddingModel{}); err != nil {
		return fmt.Errorf("migrate chunk tables: %w", err)
	}
	return nil
}

// Upsert inserts chunks and their embeddings in one transaction.
func (p *PostgresStore) Upsert(ctx context.Context, chunks []domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows, embs, err := toModels(chunks)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Embedding").Create(&rows).Error; err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		if err := tx.Create(&embs).Error; err != nil {
			return fmt.Errorf("insert embeddings: %w", err)
		}
		return nil
	})
}

// DeleteSource removes a source's chunks. Embeddings go with them via ON DELETE CASCADE.
func (p *PostgresStore) DeleteSource(ctx context.Context, sourceType, sourceID string) (int, error) {
	res := p.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Delete(&documentChunkModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete source: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Nearest returns up to limit chunks with similarity >= minSimilarity, most similar first.
func (p *PostgresStore) Nearest(
	ctx context.Context, vec []float32, limit int, minSimilarity float64,
) ([]domchunk.Scored, error) {
	type result struct {
		documentChunkModel
		Similarity float64
	}
	var results []result

	// pgvector's <=> is cosine distance, so similarity is 1 - distance.
	q := pgvector.NewVector(vec)
	err := p.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (chunk_embeddings.embedding <=> ?) AS similarity", q).
		Joins("JOIN chunk_embeddings ON chunk_embeddings.chunk_id = document_chunks.id").
		Where("1 - (chunk_embeddings.embedding <=> ?) >= ?", q, minSimilarity).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}

	out := make([]domchunk.Scored, len(results))
	for i := range results {
		out[i] = domchunk.Scored{Chunk: fromModel(&results[i].documentChunkModel), Similarity: results[i].Similarity}
	}
	return out, nil
}

// Ping checks connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toModels(chunks []domchunk.Chunk) ([]documentChunkModel, []chunkEmbeddingModel, error) {
	rows := make([]documentChunkModel, len(chunks))
	embs := make([]chunkEmbeddingModel, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: chunk id %q: %w", domain.ErrInvalidInput, c.ID, err)
		}
		docID, err := uuid.Parse(c.DocumentID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: document id %q: %w", domain.ErrInvalidInput, c.DocumentID, err)
		}
		meta := []byte("{}")
		if len(c.Metadata) > 0 {
			if meta, err = json.Marshal(c.Metadata); err != nil {
				return nil, nil, fmt.Errorf("marshal metadata: %w", err)
			}
		}
		rows[i] = documentChunkModel{
			ID:         id,
			DocumentID: docID,
			SourceType: c.SourceType,
			SourceID:   c.SourceID,
			Title:      c.Title,
			Content:    c.Content,
			ChunkIndex: c.ChunkIndex,
			Metadata:   string(meta),
		}
		embs[i] = chunkEmbeddingModel{ChunkID: id, Embedding: pgvector.NewVector(c.Embedding)}
	}
	return rows, embs, nil
}

func fromModel(m *documentChunkModel) domchunk.Chunk {
	var meta map[string]string
	if m.Metadata != "" && m.Metadata != "{}" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}
	return domchunk.Chunk{
		ID:         m.ID.String(),
		DocumentID: m.DocumentID.String(),
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		Title:      m.Title,
		Content:    m.Content,
		ChunkIndex: m.ChunkIndex,
		Metadata:   meta,
	}
}
