package pipeline

import (
	"context"
	"time"

	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	"github.com/kailas-cloud/faqbot/internal/domain/flow"
	domknow "github.com/kailas-cloud/faqbot/internal/domain/knowledge"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
	"github.com/kailas-cloud/faqbot/internal/usecase/trigger"
)

// StateStore keeps one conversation per user. Get returns domain.ErrNotFound
// when the user is not in a dialog.
type StateStore interface {
	Put(ctx context.Context, userID string, st *conversation.State, ttl time.Duration) error
	Get(ctx context.Context, userID string) (*conversation.State, error)
	Delete(ctx context.Context, userID string) error
}

// DialogCatalog looks up flow steps.
type DialogCatalog interface {
	Lookup(trigger string, step int) (flow.Step, bool)
}

// TriggerResolver decides whether a free-form message starts a dialog.
type TriggerResolver interface {
	Resolve(ctx context.Context, text string) (trigger.Result, bool)
}

// KnowledgeMatcher answers from the curated knowledge base.
type KnowledgeMatcher interface {
	Match(ctx context.Context, query string) domknow.Match
	Lookup(query string) (domknow.Result, bool)
}

// Retriever is the semantic retrieval tier.
type Retriever interface {
	Resolve(ctx context.Context, query string) retrieval.Outcome
}

// CatalogReloader refreshes every catalog.
type CatalogReloader interface {
	ReloadAll(ctx context.Context) error
}
