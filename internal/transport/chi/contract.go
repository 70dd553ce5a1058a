package chi

import (
	"context"

	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	healthuc "github.com/kailas-cloud/faqbot/internal/usecase/health"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

// Conversations is the resolution pipeline.
type Conversations interface {
	HandleMessage(ctx context.Context, userID, text string) pipeline.Reply
	Dialog(ctx context.Context, userID string) (*conversation.State, error)
	Cancel(ctx context.Context, userID string) (bool, error)
	ReloadCatalogs(ctx context.Context) error
}

// Documents indexes content for retrieval.
type Documents interface {
	Ingest(ctx context.Context, req retrieval.IngestRequest) (retrieval.IngestResult, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
