package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector. Retrieval embeds document chunks and
// user queries through it.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies collaborator availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens it cost.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order plus aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (r *BatchEmbeddingResult) add(res EmbeddingResult) {
	r.Embeddings = append(r.Embeddings, res.Embedding)
	r.PromptTokens += res.PromptTokens
	r.TotalTokens += res.TotalTokens
}

// EmbedAll embeds texts in order, in one call when e is a BatchEmbedder and
// one call per text otherwise. A provider returning the wrong number of
// vectors fails with ErrEmbeddingProviderError.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}

	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(texts) {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: got %d vectors for %d texts: %w",
				len(res.Embeddings), len(texts), ErrEmbeddingProviderError)
		}
		return res, nil
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
		}
		out.add(res)
	}
	return out, nil
}

// EmbeddingRole says whether a text is indexed or searched for. Asymmetric
// embedding models expect a different instruction for each.
type EmbeddingRole string

const (
	RoleDocument EmbeddingRole = "document"
	RoleQuery    EmbeddingRole = "query"
)

// Instructions are the per-role prefixes of an asymmetric embedding model.
type Instructions struct {
	Document string
	Query    string
}

// For returns the instruction for role.
func (in Instructions) For(role EmbeddingRole) string {
	if role == RoleQuery {
		return in.Query
	}
	return in.Document
}

// ForRole returns an Embedder that prefixes every text with the role's
// instruction. inner is returned as is when there is no instruction.
func ForRole(inner Embedder, in Instructions, role EmbeddingRole) Embedder {
	instruction := in.For(role)
	if instruction == "" {
		return inner
	}
	return &instructedEmbedder{inner: inner, instruction: instruction, role: role}
}

type instructedEmbedder struct {
	inner       Embedder
	instruction string
	role        EmbeddingRole
}

func (e *instructedEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed %s: %w", e.role, err)
	}
	return res, nil
}

func (e *instructedEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}
	res, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("embed %s: %w", e.role, err)
	}
	return res, nil
}

// HealthCheck delegates to inner when it supports health checks.
func (e *instructedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
