package db

import (
	"encoding/binary"
	"math"
)

// DefaultVectorField is the vector attribute searched when KNNQuery.VectorField is empty.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string
	Vector      []float32
	K           int
	// EFRuntime widens the HNSW candidate list for this query; zero keeps the index default.
	EFRuntime int
	// MinScore drops hits whose similarity is below it.
	MinScore     float64
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is cosine similarity in [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector encodes v as little-endian FLOAT32, the layout FT vector fields expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector is the inverse of EncodeVector. Trailing bytes are ignored.
func DecodeVector(s string) []float32 {
	out := make([]float32, len(s)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return out
}
