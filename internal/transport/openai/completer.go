package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/metrics"
)

const defaultCompletionTimeout = 15 * time.Second

// Completer is the language-model collaborator over the OpenAI-compatible chat API.
type Completer struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	user      string
	logger    *zap.Logger
}

// NewCompleter creates a chat completion client. Every call is bounded by cfg.Timeout
// (15s when unset).
func NewCompleter(cfg *Config) *Completer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	return &Completer{
		client:    newClient(cfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		user:      cfg.User,
		logger:    cfg.Logger,
	}
}

// Complete implements domain.Completer. Failures wrap domain.ErrCollaboratorUnavailable.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
		User:      c.user,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestDuration.WithLabelValues(c.model, "error").Observe(duration.Seconds())
		c.logger.Warn("Chat completion failed",
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", wrapAPIError("completion", err, domain.ErrCollaboratorUnavailable)
	}

	metrics.LLMRequestDuration.WithLabelValues(c.model, "success").Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCollaboratorUnavailable)
	}

	c.logger.Debug("Chat completion completed",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
