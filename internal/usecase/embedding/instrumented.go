package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// Options describe the provider behind an InstrumentedEmbedder.
type Options struct {
	Provider string
	Model    string
	// Dimensions, when positive, is enforced on every returned vector.
	Dimensions int
	// BatchSize caps texts per provider call; defaults to DefaultMaxAPIBatchSize.
	BatchSize int
}

// InstrumentedEmbedder counts embedding failures as collaborator errors,
// rejects vectors of the wrong dimension and splits large batches. Transport
// metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	opts   Options
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultMaxAPIBatchSize
	}
	return &InstrumentedEmbedder{
		inner:  inner,
		opts:   opts,
		logger: logger.With(zap.String("provider", opts.Provider), zap.String("model", opts.Model)),
	}
}

// Embed delegates to inner and checks the vector.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)
	if err == nil {
		err = p.checkDimensions(result.Embedding)
	}
	if err != nil {
		p.fail("Embedding request failed", err, zap.Duration("duration", time.Since(start)))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed sends texts in sub-batches of at most BatchSize and checks every vector.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += p.opts.BatchSize {
		end := min(offset+p.opts.BatchSize, len(texts))

		res, err := domain.EmbedAll(ctx, p.inner, texts[offset:end])
		if err == nil {
			for _, vec := range res.Embeddings {
				if err = p.checkDimensions(vec); err != nil {
					break
				}
			}
		}
		if err != nil {
			p.fail("Batch embedding request failed", err,
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", end-offset),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.logger.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// checkDimensions guards the vector index, which only accepts its configured dimension.
func (p *InstrumentedEmbedder) checkDimensions(vec []float32) error {
	if p.opts.Dimensions > 0 && len(vec) != p.opts.Dimensions {
		return fmt.Errorf("vector has %d dimensions, want %d: %w",
			len(vec), p.opts.Dimensions, domain.ErrEmbeddingProviderError)
	}
	return nil
}

func (p *InstrumentedEmbedder) fail(msg string, err error, fields ...zap.Field) {
	metrics.CollaboratorErrorsTotal.WithLabelValues("embedding").Inc()
	p.logger.Error(msg, append(fields, zap.Error(err))...)
}
