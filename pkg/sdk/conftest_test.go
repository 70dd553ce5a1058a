package faqbot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

const testDialogs = `id,trigger,step,prompt,options,next_steps,is_terminal,fallback_step
1,returns,1,Was the item damaged?,Yes|No,2|3,false,1
2,returns,2,We will send a replacement.,,,true,
3,returns,3,Send it back within 30 days.,,,true,
`

const testKnowledge = `- id: k1
  question: What are your opening hours?
  keywords: [hours, opening]
  answer: We are open 9 to 5.
  priority: 0
  status: active
`

const groundedAnswer = "Conclusion: refunds take 14 days."

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// writeContent creates a content directory with both tables.
func writeContent(t *testing.T, dialogs, knowledge string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dialog_flows.csv"), []byte(dialogs), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "knowledge_base.yaml"), []byte(knowledge), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	dir := writeContent(t, testDialogs, testKnowledge)
	c, err := New(context.Background(), append([]Option{WithContentDir(dir)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// topicEmbedder puts texts mentioning refunds on one axis and everything else on the other.
type topicEmbedder struct {
	err error
}

func (e *topicEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	if strings.Contains(strings.ToLower(text), "refund") {
		return EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 1}, nil
	}
	return EmbeddingResult{Embedding: []float32{0, 1}, TotalTokens: 1}, nil
}

type batchTopicEmbedder struct {
	topicEmbedder
	batchCalls int
}

func (e *batchTopicEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batchCalls++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, err
		}
		out.Embeddings[i] = res.Embedding
	}
	return out, nil
}

// scriptedCompleter answers grounded and direct prompts and declines classification.
type scriptedCompleter struct{}

func (scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Reference material:"):
		return groundedAnswer, nil
	case strings.Contains(prompt, "directly"):
		return "A direct answer.", nil
	default:
		return "NONE", nil
	}
}

// stubConversations lets tests force use-case failures.
type stubConversations struct {
	state *conversation.State
	err   error
}

func (s *stubConversations) HandleMessage(context.Context, string, string) pipeline.Reply {
	return pipeline.Reply{Text: "sorry", Tier: pipeline.TierError}
}

func (s *stubConversations) Dialog(context.Context, string) (*conversation.State, error) {
	return s.state, s.err
}

func (s *stubConversations) IsInDialog(context.Context, string) (bool, error) {
	return s.state != nil, s.err
}

func (s *stubConversations) Cancel(context.Context, string) (bool, error) {
	return false, s.err
}

func (s *stubConversations) ReloadCatalogs(context.Context) error { return s.err }

type stubDocuments struct{}

func (stubDocuments) Ingest(context.Context, retrieval.IngestRequest) (retrieval.IngestResult, error) {
	return retrieval.IngestResult{}, errors.New("unreachable")
}

func stubClient(conv conversationUseCase) *Client {
	return &Client{convSvc: conv, docSvc: stubDocuments{}}
}
