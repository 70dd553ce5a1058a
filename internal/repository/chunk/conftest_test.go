package chunk

import (
	"context"

	"github.com/kailas-cloud/faqbot/internal/db"
	domchunk "github.com/kailas-cloud/faqbot/internal/domain/chunk"
)

// mockStore implements the redis consumer interface for tests.
type mockStore struct {
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	deletePrefixFn func(ctx context.Context, prefix string) (int, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if m.deletePrefixFn != nil {
		return m.deletePrefixFn(ctx, prefix)
	}
	return 0, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Ping(context.Context) error { return nil }

func testChunk(idx int, vec ...float32) domchunk.Chunk {
	return domchunk.Chunk{
		ID:         "11111111-1111-1111-1111-11111111111" + string(rune('0'+idx)),
		DocumentID: "22222222-2222-2222-2222-222222222222",
		SourceType: "manual",
		SourceID:   "guide-1",
		Title:      "Guide",
		Content:    "content",
		ChunkIndex: idx,
		Embedding:  vec,
		Metadata:   map[string]string{"lang": "en"},
	}
}
