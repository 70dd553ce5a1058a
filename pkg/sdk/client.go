package faqbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/faqbot/internal/db/redis"
	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	"github.com/kailas-cloud/faqbot/internal/metrics"
	chunkrepo "github.com/kailas-cloud/faqbot/internal/repository/chunk"
	"github.com/kailas-cloud/faqbot/internal/repository/content"
	staterepo "github.com/kailas-cloud/faqbot/internal/repository/state"
	cataloguc "github.com/kailas-cloud/faqbot/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/faqbot/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/faqbot/internal/usecase/knowledge"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
	"github.com/kailas-cloud/faqbot/internal/usecase/trigger"
)

const (
	defaultContentDir       = "content"
	defaultDialogTable      = "dialog_flows"
	defaultKnowledgeTable   = "knowledge_base"
	defaultReadinessTimeout = 10 * time.Second
	defaultStateOpTimeout   = 2 * time.Second
	defaultReloadTimeout    = 30 * time.Second
	completerTimeout        = 10 * time.Second
)

// Internal interfaces for substitution in tests.
type conversationUseCase interface {
	HandleMessage(ctx context.Context, userID, text string) pipeline.Reply
	Dialog(ctx context.Context, userID string) (*conversation.State, error)
	IsInDialog(ctx context.Context, userID string) (bool, error)
	Cancel(ctx context.Context, userID string) (bool, error)
	ReloadCatalogs(ctx context.Context) error
}

type documentUseCase interface {
	Ingest(ctx context.Context, req retrieval.IngestRequest) (retrieval.IngestResult, error)
}

// Client is the faqbot SDK entry point.
type Client struct {
	store     *dbRedis.Store
	convSvc   conversationUseCase
	docSvc    documentUseCase
	healthSvc healthUseCase
	scheduler *cataloguc.Scheduler
	obs       *observer
}

// New creates a Client, loads both catalogs and, with WithRedis, connects to Redis.
// The provided context is used for the initial load and readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		contentDir:     defaultContentDir,
		dialogTable:    defaultDialogTable,
		knowledgeTable: defaultKnowledgeTable,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.zapLogger == nil {
		cfg.zapLogger = zap.NewNop()
	}
	if cfg.embedder != nil && cfg.dimensions <= 0 && len(cfg.addrs) > 0 {
		return nil, errors.New("faqbot: embedding dimension required with a Redis vector store")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store *dbRedis.Store
	if len(cfg.addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("faqbot: create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("faqbot: database not ready: %w", err)
		}
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return c, nil
}

// stateStore is what the pipeline and the health check need from the state store.
type stateStore interface {
	pipeline.StateStore
	healthuc.Pinger
}

// vectorStore is what retrieval and the health check need from the vector store.
type vectorStore interface {
	retrieval.VectorStore
	healthuc.Pinger
}

func wireClient(ctx context.Context, store *dbRedis.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := cfg.zapLogger

	local := staterepo.NewMemoryStore(time.Minute)
	var states stateStore = local
	if store != nil {
		remote := staterepo.NewRedisStore(store, defaultStateOpTimeout)
		if cfg.disableFallback {
			states = remote
		} else {
			states = staterepo.NewFallbackStore(remote, local, metrics.StateStoreDegraded, logger)
		}
	}

	source := content.NewFileSource(cfg.contentDir, logger)
	dialogs := cataloguc.NewDialogCatalog(source, cfg.dialogTable, logger)
	knowledge := cataloguc.NewKnowledgeCatalog(source, cfg.knowledgeTable, logger)
	scheduler := cataloguc.NewScheduler(cfg.reloadSchedule, defaultReloadTimeout, logger, dialogs, knowledge)
	if err := scheduler.ReloadAll(ctx); err != nil {
		return nil, fmt.Errorf("faqbot: load catalogs: %w", err)
	}

	// A nil interface, not a typed nil, keeps the language-model tiers off.
	var llm domain.Completer
	if cfg.completer != nil {
		llm = cfg.completer
	}

	triggers := trigger.New(dialogs, llm, trigger.Config{Timeout: completerTimeout}, logger)
	matcher := knowledgeuc.New(knowledge, llm, knowledgeuc.Config{Timeout: completerTimeout}, logger)
	knowledge.OnReload(matcher.Invalidate)

	healthDeps := healthuc.Deps{States: states}
	retrievalDeps := retrieval.Deps{Completer: llm}
	if cfg.embedder != nil {
		var vectors vectorStore = chunkrepo.NewMemoryStore()
		if store != nil {
			vs := chunkrepo.NewRedisStore(store, cfg.dimensions, chunkrepo.HNSWConfig{})
			if err := vs.EnsureIndex(ctx); err != nil {
				return nil, fmt.Errorf("faqbot: create chunk index: %w", err)
			}
			vectors = vs
		}
		retrievalDeps.Store = vectors
		retrievalDeps.Embedder = adaptEmbedder(cfg.embedder)
		healthDeps.Vectors = vectors
	}
	retriever := retrieval.New(retrievalDeps, retrieval.Config{
		MinSimilarity: cfg.minSimilarity,
		Timeout:       completerTimeout,
	}, logger)

	p := pipeline.New(pipeline.Deps{
		States:    states,
		Dialogs:   dialogs,
		Triggers:  triggers,
		Knowledge: matcher,
		Retriever: retriever,
		Reloader:  scheduler,
	}, pipeline.Config{
		StateTTL:    cfg.stateTTL,
		CancelWords: cfg.cancelWords,
		Messages:    cfg.messages.toPipeline(),
	}, logger)

	if cfg.reloadSchedule != "" {
		if err := scheduler.Start(); err != nil {
			return nil, fmt.Errorf("faqbot: %w", err)
		}
	}

	return &Client{
		store:     store,
		convSvc:   p,
		docSvc:    retriever,
		healthSvc: healthuc.New(healthDeps, logger),
		scheduler: scheduler,
		obs:       obs,
	}, nil
}

// Close stops background reloads and releases all resources.
func (c *Client) Close() {
	if c.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultReloadTimeout)
		c.scheduler.Stop(ctx)
		cancel()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// HandleMessage answers one message from userID. A reply is always produced;
// the error is set only for an empty user id.
func (c *Client) HandleMessage(ctx context.Context, userID, text string) (reply Reply, err error) {
	start := time.Now()
	defer func() {
		obsErr := err
		if obsErr == nil {
			c.obs.reply(string(reply.Tier))
			if reply.Tier == TierError {
				obsErr = errReplyDegraded
			}
		}
		c.obs.observe("handle_message", start, obsErr)
	}()

	if strings.TrimSpace(userID) == "" {
		return Reply{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return replyFromPipeline(c.convSvc.HandleMessage(ctx, userID, text)), nil
}

// Dialog returns the user's active dialog, or ErrNotFound.
func (c *Client) Dialog(ctx context.Context, userID string) (d Dialog, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dialog", start, err) }()

	st, err := c.convSvc.Dialog(ctx, userID)
	if err != nil {
		return Dialog{}, fmt.Errorf("get dialog: %w", err)
	}
	if st == nil {
		return Dialog{}, fmt.Errorf("dialog of %q: %w", userID, ErrNotFound)
	}
	return dialogFromState(st), nil
}

// InDialog reports whether the user has a dialog in progress.
func (c *Client) InDialog(ctx context.Context, userID string) (in bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("in_dialog", start, err) }()

	in, err = c.convSvc.IsInDialog(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check dialog: %w", err)
	}
	return in, nil
}

// Cancel ends the user's dialog. It reports false when none was in progress.
func (c *Client) Cancel(ctx context.Context, userID string) (cancelled bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("cancel", start, err) }()

	cancelled, err = c.convSvc.Cancel(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("cancel dialog: %w", err)
	}
	return cancelled, nil
}

// Reload rereads both catalogs from the content directory. A catalog that
// fails to load keeps its previous contents.
func (c *Client) Reload(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reload", start, err) }()

	if err = c.convSvc.ReloadCatalogs(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// Ingest indexes a document for retrieval, replacing an earlier ingestion of
// the same source. It returns ErrRetrievalDisabled without an Embedder.
func (c *Client) Ingest(ctx context.Context, doc Document) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	out, err := c.docSvc.Ingest(ctx, doc.toRequest())
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s/%s: %w", doc.SourceType, doc.SourceID, err)
	}
	return IngestResult{DocumentID: out.DocumentID, Chunks: out.Chunks, Replaced: out.Replaced}, nil
}
