package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/faqbot/internal/db"
)

// CreateIndex creates a hash-backed FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// createArgs renders FT.CREATE arguments: name ON HASH [PREFIX n p...] SCHEMA fields...
func createArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fa, err := fieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func fieldArgs(f *db.IndexField) ([]string, error) {
	switch f.Kind {
	case db.FieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case db.FieldText:
		return []string{f.Name, "TEXT"}, nil
	case db.FieldTag:
		if f.Separator != "" {
			return []string{f.Name, "TAG", "SEPARATOR", f.Separator}, nil
		}
		return []string{f.Name, "TAG"}, nil
	case db.FieldVector:
		return hnswArgs(f), nil
	default:
		return nil, fmt.Errorf("%w: field %q has unknown kind %d", db.ErrInvalidIndex, f.Name, f.Kind)
	}
}

func hnswArgs(f *db.IndexField) []string {
	distance := f.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if f.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.M))
	}
	if f.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct))
	}
	return append([]string{f.Name, "VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
