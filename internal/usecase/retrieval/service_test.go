package retrieval

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/chunk"
	chunkrepo "github.com/kailas-cloud/faqbot/internal/repository/chunk"
)

const manual = "To reset your password open Settings. Choose Security and press Reset password. " +
	"Shipping takes three days. Shipping is free above fifty euros."

func newService(t *testing.T, llm *fakeCompleter) (*Service, *chunkrepo.MemoryStore) {
	t.Helper()
	store := chunkrepo.NewMemoryStore()
	deps := Deps{Store: store, Embedder: &topicEmbedder{}}
	if llm != nil {
		deps.Completer = llm
	}
	svc := New(deps, Config{ChunkSize: 90, ChunkOverlap: 0, MinSimilarity: 0.8}, zap.NewNop())
	ids := 0
	svc.newID = func() string {
		ids++
		return "doc" + strconv.Itoa(ids)
	}
	return svc, store
}

func TestIngest_SplitsEmbedsAndStores(t *testing.T) {
	svc, _ := newService(t, nil)

	res, err := svc.Ingest(context.Background(), IngestRequest{
		SourceType: "manual", SourceID: "m1", Title: "User manual", Content: manual,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc1", res.DocumentID)
	assert.Equal(t, 2, res.Chunks)
	assert.Zero(t, res.Replaced)

	found, err := svc.Retrieve(context.Background(), "forgot password", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, chunk.IDFor("doc1", 0), found[0].Chunk.ID)
	_, err = uuid.Parse(found[0].Chunk.ID)
	assert.NoError(t, err, "chunk ids must be UUIDs for the postgres store")
	assert.Equal(t, "User manual", found[0].Chunk.Title)
	assert.InDelta(t, 1.0, found[0].Similarity, 1e-6)
}

func TestIngest_ReplacesPreviousChunks(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	req := IngestRequest{SourceType: "manual", SourceID: "m1", Content: manual}

	_, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	res, err := svc.Ingest(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "doc2", res.DocumentID)
	assert.Equal(t, 2, res.Replaced)

	found, err := svc.Retrieve(ctx, "password", 10)
	require.NoError(t, err)
	require.Len(t, found, 1, "re-ingestion must not duplicate chunks")
	assert.Equal(t, "doc2", found[0].Chunk.DocumentID)
}

func TestIngest_Validation(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.Ingest(context.Background(), IngestRequest{SourceType: "manual", Content: "x."})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Ingest(context.Background(), IngestRequest{SourceType: "manual", SourceID: "m1", Content: "  \n "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngest_EmbeddingFailureKeepsPreviousChunks(t *testing.T) {
	store := chunkrepo.NewMemoryStore()
	emb := &topicEmbedder{}
	svc := New(Deps{Store: store, Embedder: emb}, Config{MinSimilarity: 0.8}, zap.NewNop())
	ctx := context.Background()
	req := IngestRequest{SourceType: "manual", SourceID: "m1", Content: manual}

	_, err := svc.Ingest(ctx, req)
	require.NoError(t, err)

	emb.err = errors.New("provider down")
	_, err = svc.Ingest(ctx, req)
	require.Error(t, err)

	emb.err = nil
	found, err := svc.Retrieve(ctx, "password", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, found)
}

func TestDisabled(t *testing.T) {
	svc := New(Deps{}, Config{}, zap.NewNop())

	assert.False(t, svc.Enabled())
	_, err := svc.Ingest(context.Background(), IngestRequest{SourceType: "a", SourceID: "b", Content: "c."})
	assert.ErrorIs(t, err, domain.ErrRetrievalDisabled)
	_, err = svc.Retrieve(context.Background(), "q", 1)
	assert.ErrorIs(t, err, domain.ErrRetrievalDisabled)
	assert.Equal(t, Outcome{Status: StatusDisabled}, svc.Resolve(context.Background(), "q"))
}

func TestResolve_Grounded(t *testing.T) {
	llm := &fakeCompleter{reply: "Conclusion: open Settings.\n"}
	svc, _ := newService(t, llm)
	_, err := svc.Ingest(context.Background(), IngestRequest{
		SourceType: "manual", SourceID: "m1", Title: "User manual", Content: manual,
	})
	require.NoError(t, err)

	out := svc.Resolve(context.Background(), "How do I change my password?")

	require.Equal(t, StatusGrounded, out.Status)
	assert.Equal(t, "Conclusion: open Settings.", out.Text)
	require.Len(t, out.Sources, 1)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "[1] User manual (similarity 1.00)")
	assert.Contains(t, llm.prompts[0], "Question: How do I change my password?")
}

func TestResolve_NothingAboveThreshold(t *testing.T) {
	llm := &fakeCompleter{reply: "made up"}
	svc, _ := newService(t, llm)
	_, err := svc.Ingest(context.Background(), IngestRequest{SourceType: "manual", SourceID: "m1", Content: manual})
	require.NoError(t, err)

	out := svc.Resolve(context.Background(), "what are your opening hours")

	assert.Equal(t, StatusNoRelevant, out.Status)
	assert.Empty(t, out.Text)
	assert.Empty(t, llm.prompts, "no answer may be synthesized without relevant chunks")
}

func TestResolve_StoreFailureAnswersUngrounded(t *testing.T) {
	llm := &fakeCompleter{reply: "We ship worldwide."}
	svc := New(Deps{
		Store:     &failingStore{err: errors.New("connection refused")},
		Embedder:  &topicEmbedder{},
		Completer: llm,
	}, Config{}, zap.NewNop())

	out := svc.Resolve(context.Background(), "do you ship abroad")

	assert.Equal(t, StatusDisabled, out.Status)
	assert.Equal(t, "We ship worldwide.", out.Text)
	require.Len(t, llm.prompts, 1)
	assert.True(t, strings.HasPrefix(llm.prompts[0], "Answer the user's question directly"))
}

func TestResolve_AnswerFailure(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("timeout")}
	svc, _ := newService(t, llm)
	_, err := svc.Ingest(context.Background(), IngestRequest{SourceType: "manual", SourceID: "m1", Content: manual})
	require.NoError(t, err)

	out := svc.Resolve(context.Background(), "shipping cost")

	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, out.Text)
}

func TestAnswer_EmptyReplyIsUnavailable(t *testing.T) {
	svc := New(Deps{Completer: &fakeCompleter{reply: "  "}}, Config{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}
