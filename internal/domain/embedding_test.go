package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	texts  []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.texts = append(s.texts, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	vectors int
	calls   int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.calls++
	s.texts = append(s.texts, texts...)
	return BatchEmbeddingResult{Embeddings: make([][]float32, s.vectors), TotalTokens: len(texts)}, nil
}

func TestForRole_PrefixesByRole(t *testing.T) {
	in := Instructions{Document: "passage: ", Query: "query: "}
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}}}

	if _, err := ForRole(inner, in, RoleQuery).Embed(context.Background(), "reset password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ForRole(inner, in, RoleDocument).Embed(context.Background(), "Reset via settings."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"query: reset password", "passage: Reset via settings."}
	for i, w := range want {
		if inner.texts[i] != w {
			t.Errorf("text %d = %q, want %q", i, inner.texts[i], w)
		}
	}
}

func TestForRole_NoInstructionReturnsInner(t *testing.T) {
	inner := &stubEmbedder{}
	if got := ForRole(inner, Instructions{Document: "passage: "}, RoleQuery); got != Embedder(inner) {
		t.Errorf("expected inner embedder back, got %T", got)
	}
}

func TestForRole_WrapsErrors(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := ForRole(&stubEmbedder{err: innerErr}, Instructions{Query: "q: "}, RoleQuery)

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_FallsBackToSingleCalls(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}
	emb := ForRole(inner, Instructions{Document: "passage: "}, RoleDocument)

	res, err := EmbedAll(context.Background(), emb, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || res.TotalTokens != 6 {
		t.Fatalf("embeddings = %d, tokens = %d", len(res.Embeddings), res.TotalTokens)
	}
	if inner.texts[2] != "passage: c" {
		t.Errorf("last inner text = %q", inner.texts[2])
	}
}

func TestEmbedAll_UsesBatchCall(t *testing.T) {
	inner := &stubBatchEmbedder{vectors: 2}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || len(res.Embeddings) != 2 {
		t.Errorf("calls = %d, embeddings = %d", inner.calls, len(res.Embeddings))
	}
}

func TestEmbedAll_CountMismatch(t *testing.T) {
	_, err := EmbedAll(context.Background(), &stubBatchEmbedder{vectors: 1}, []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("err = %v, want ErrEmbeddingProviderError", err)
	}
}

func TestEmbedAll_StopsOnError(t *testing.T) {
	innerErr := errors.New("boom")
	inner := &stubEmbedder{err: innerErr}

	_, err := EmbedAll(context.Background(), inner, []string{"x", "y"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if len(inner.texts) != 1 {
		t.Errorf("embedded %d texts after the failure, want 1", len(inner.texts))
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	inner := &stubBatchEmbedder{}
	res, err := EmbedAll(context.Background(), inner, nil)
	if err != nil || len(res.Embeddings) != 0 || inner.calls != 0 {
		t.Errorf("res = %+v, err = %v, calls = %d", res, err, inner.calls)
	}
}

func TestStateStoreError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStateStoreError("put", cause)

	if !errors.Is(err, ErrStateStore) {
		t.Error("expected errors.Is(err, ErrStateStore)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	want := "state store failure: put: connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
