package db

import (
	"errors"
	"fmt"
)

// ErrInvalidIndex signals a malformed index definition.
var ErrInvalidIndex = errors.New("db: invalid index definition")

// DistanceMetric used by FT.SEARCH vector similarity queries.
// SearchKNN converts distances to similarities, so only metrics with a
// [0,2] distance range are offered.
type DistanceMetric string

const (
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceIP is inner product distance over normalized vectors.
	DistanceIP DistanceMetric = "IP"
)

// FieldKind enumerates the FT field types the chunk index uses.
type FieldKind int

const (
	// FieldNumeric is a numeric field.
	FieldNumeric FieldKind = iota
	// FieldTag is an exact-match tag field.
	FieldTag
	// FieldText is a full-text field.
	FieldText
	// FieldVector is a FLOAT32 HNSW vector field.
	FieldVector
)

// IndexField describes one field of a hash-backed FT index.
type IndexField struct {
	Name string
	Kind FieldKind

	// Separator splits multi-value tags; empty keeps the server default.
	Separator string

	// HNSW vector options. Zero M or EFConstruct keep the server defaults.
	Dim         int
	Distance    DistanceMetric
	M           int
	EFConstruct int
}

// IndexDefinition is an FT.CREATE definition over hashes under Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidIndex)
	}
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("%w: name %q contains invalid characters", ErrInvalidIndex, idx.Name)
	}
	if len(idx.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidIndex)
	}

	seen := make(map[string]bool, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: field %d has no name", ErrInvalidIndex, i)
		case seen[f.Name]:
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidIndex, f.Name)
		case f.Kind == FieldVector && f.Dim <= 0:
			return fmt.Errorf("%w: vector field %q needs a positive dimension", ErrInvalidIndex, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
