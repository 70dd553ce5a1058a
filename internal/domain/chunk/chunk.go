package chunk

import (
	"strconv"

	"github.com/google/uuid"
)

// Chunk is a bounded fragment of ingested text with its embedding.
// Chunks are never mutated in place; re-ingesting a source replaces them.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	SourceType string            `json:"source_type"`
	SourceID   string            `json:"source_id"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	ChunkIndex int               `json:"chunk_index"`
	Embedding  []float32         `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Scored is a chunk returned from a nearest-neighbour query.
type Scored struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// SourceKey identifies the origin of a set of chunks.
func SourceKey(sourceType, sourceID string) string {
	return sourceType + ":" + sourceID
}

// IDFor derives the id of the index-th chunk of a document. The id is a
// name-based UUID, so stores with UUID keys accept it and it is stable for
// the same document and index.
func IDFor(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(documentID+"#"+strconv.Itoa(index))).String()
}
