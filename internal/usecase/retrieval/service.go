package retrieval

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/chunk"
	"github.com/kailas-cloud/faqbot/internal/metrics"
)

// Retrieval defaults.
const (
	DefaultLimit         = 5
	DefaultMinSimilarity = 0.75
)

// Status is the outcome class of Resolve.
type Status int

// Resolve outcomes.
const (
	// StatusNoRelevant means retrieval ran and nothing cleared the similarity threshold.
	StatusNoRelevant Status = iota
	// StatusGrounded means Text is built from retrieved chunks.
	StatusGrounded
	// StatusDisabled means retrieval was not possible; Text, if any, is ungrounded.
	StatusDisabled
	// StatusFailed means chunks were found but no answer could be produced.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusGrounded:
		return "grounded"
	case StatusDisabled:
		return "retrieval_disabled"
	case StatusFailed:
		return "failed"
	default:
		return "no_relevant"
	}
}

// Outcome is what the pipeline gets from the retrieval tier.
type Outcome struct {
	Status  Status
	Text    string
	Sources []chunk.Scored
}

// IngestRequest is one source document to index.
type IngestRequest struct {
	SourceType string            `json:"source_type" validate:"required,max=64"`
	SourceID   string            `json:"source_id" validate:"required,max=256"`
	Title      string            `json:"title" validate:"max=512"`
	Content    string            `json:"content" validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IngestResult reports what Ingest stored.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Replaced   int    `json:"replaced"`
}

// Config holds retrieval settings. Zero values take the defaults.
type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	Limit         int
	MinSimilarity float64
	// Timeout bounds each language-model call, StoreTimeout each vector store call.
	Timeout      time.Duration
	StoreTimeout time.Duration
}

// Deps are the collaborators of the retrieval layer. Any of them may be nil:
// without Store or Embedder retrieval is disabled, without Completer no answer
// is synthesized.
type Deps struct {
	Store    VectorStore
	Embedder domain.Embedder
	// QueryEmbedder embeds queries; defaults to Embedder.
	QueryEmbedder domain.Embedder
	Completer     domain.Completer
}

// Service is the semantic retrieval layer.
type Service struct {
	deps     Deps
	splitter *chunk.Splitter
	cfg      Config
	newID    func() string
	logger   *zap.Logger
}

// New creates the retrieval layer.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if deps.QueryEmbedder == nil {
		deps.QueryEmbedder = deps.Embedder
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	return &Service{
		deps:     deps,
		splitter: chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:      cfg,
		newID:    func() string { return uuid.New().String() },
		logger:   logger,
	}
}

// Enabled reports whether grounded retrieval is configured.
func (s *Service) Enabled() bool {
	return s.deps.Store != nil && s.deps.Embedder != nil
}

// Ingest splits, embeds and stores a source document under a new document id.
// Chunks from an earlier ingestion of the same source are replaced.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if !s.Enabled() {
		return IngestResult{}, domain.ErrRetrievalDisabled
	}
	if strings.TrimSpace(req.SourceType) == "" || strings.TrimSpace(req.SourceID) == "" {
		return IngestResult{}, fmt.Errorf("%w: source type and id are required", domain.ErrInvalidInput)
	}

	pieces := s.splitter.Split(req.Content)
	if len(pieces) == 0 {
		return IngestResult{}, fmt.Errorf("%w: content is empty", domain.ErrInvalidInput)
	}

	emb, err := domain.EmbedAll(ctx, s.deps.Embedder, pieces)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed chunks: %w", err)
	}

	docID := s.newID()
	chunks := make([]chunk.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = chunk.Chunk{
			ID:         chunk.IDFor(docID, i),
			DocumentID: docID,
			SourceType: req.SourceType,
			SourceID:   req.SourceID,
			Title:      req.Title,
			Content:    text,
			ChunkIndex: i,
			Embedding:  emb.Embeddings[i],
			Metadata:   maps.Clone(req.Metadata),
		}
	}

	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	replaced, err := s.deps.Store.DeleteSource(sctx, req.SourceType, req.SourceID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("delete previous chunks: %w", err)
	}
	if err := s.deps.Store.Upsert(sctx, chunks); err != nil {
		return IngestResult{}, fmt.Errorf("store chunks: %w", err)
	}

	s.logger.Info("Document ingested",
		zap.String("source", chunk.SourceKey(req.SourceType, req.SourceID)),
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Int("replaced", replaced),
		zap.Int("tokens", emb.TotalTokens),
	)

	return IngestResult{DocumentID: docID, Chunks: len(chunks), Replaced: replaced}, nil
}

// Retrieve returns up to limit chunks above the similarity threshold, most similar first.
func (s *Service) Retrieve(ctx context.Context, query string, limit int) ([]chunk.Scored, error) {
	if !s.Enabled() {
		return nil, domain.ErrRetrievalDisabled
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}

	emb, err := s.deps.QueryEmbedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrCollaboratorUnavailable, err)
	}

	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	found, err := s.deps.Store.Nearest(sctx, emb.Embedding, limit, s.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w: %w", domain.ErrCollaboratorUnavailable, err)
	}
	return found, nil
}

// Answer asks the language model for a structured answer grounded in chunks,
// or for a direct answer when chunks is empty.
func (s *Service) Answer(ctx context.Context, query string, chunks []chunk.Scored) (string, error) {
	if s.deps.Completer == nil {
		return "", fmt.Errorf("no language model configured: %w", domain.ErrCollaboratorUnavailable)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	prompt := directPrompt(query)
	if len(chunks) > 0 {
		prompt = groundedPrompt(query, chunks)
	}

	reply, err := s.deps.Completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty answer: %w", domain.ErrCollaboratorUnavailable)
	}
	return reply, nil
}

// Resolve runs the retrieval tier for the pipeline. It never fails; the status
// tells grounded answers apart from "nothing relevant" and "retrieval disabled".
func (s *Service) Resolve(ctx context.Context, query string) Outcome {
	if !s.Enabled() {
		return s.ungrounded(ctx, query)
	}

	found, err := s.Retrieve(ctx, query, s.cfg.Limit)
	if err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("vector_store").Inc()
		s.logger.Warn("Retrieval unavailable, answering without context", zap.Error(err))
		return s.ungrounded(ctx, query)
	}
	if len(found) == 0 {
		return Outcome{Status: StatusNoRelevant}
	}

	text, err := s.Answer(ctx, query, found)
	if err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("llm").Inc()
		s.logger.Warn("Grounded answer failed", zap.Int("chunks", len(found)), zap.Error(err))
		return Outcome{Status: StatusFailed, Sources: found}
	}
	return Outcome{Status: StatusGrounded, Text: text, Sources: found}
}

func (s *Service) ungrounded(ctx context.Context, query string) Outcome {
	if s.deps.Completer == nil {
		return Outcome{Status: StatusDisabled}
	}
	text, err := s.Answer(ctx, query, nil)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			metrics.CollaboratorErrorsTotal.WithLabelValues("llm").Inc()
		}
		s.logger.Warn("Direct answer failed", zap.Error(err))
		return Outcome{Status: StatusDisabled}
	}
	return Outcome{Status: StatusDisabled, Text: text}
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.StoreTimeout)
	}
	return ctx, func() {}
}

func groundedPrompt(query string, chunks []chunk.Scored) string {
	var b strings.Builder
	b.WriteString("Answer the user's question using only the reference material below.\n")
	b.WriteString("Structure the reply as:\n")
	b.WriteString("Conclusion: one or two sentences.\n")
	b.WriteString("Steps: numbered steps, only if the question needs them.\n")
	b.WriteString("References: titles of the material you used.\n")
	b.WriteString("If the material does not answer the question, say that you do not know.\n\n")
	b.WriteString("Reference material:\n")
	for i, c := range chunks {
		title := c.Chunk.Title
		if title == "" {
			title = chunk.SourceKey(c.Chunk.SourceType, c.Chunk.SourceID)
		}
		fmt.Fprintf(&b, "[%d] %s (similarity %.2f)\n%s\n\n", i+1, title, c.Similarity, strings.TrimSpace(c.Chunk.Content))
	}
	fmt.Fprintf(&b, "Question: %s", strings.TrimSpace(query))
	return b.String()
}

func directPrompt(query string) string {
	return "Answer the user's question directly and concisely. " +
		"If you are not sure, say so instead of guessing.\n\n" +
		"Question: " + strings.TrimSpace(query)
}
