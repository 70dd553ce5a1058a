package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kailas-cloud/faqbot/internal/config"
	dbRedis "github.com/kailas-cloud/faqbot/internal/db/redis"
	"github.com/kailas-cloud/faqbot/internal/domain"
	logpkg "github.com/kailas-cloud/faqbot/internal/logger"
	"github.com/kailas-cloud/faqbot/internal/metrics"
	chunkrepo "github.com/kailas-cloud/faqbot/internal/repository/chunk"
	"github.com/kailas-cloud/faqbot/internal/repository/content"
	"github.com/kailas-cloud/faqbot/internal/repository/embcache"
	staterepo "github.com/kailas-cloud/faqbot/internal/repository/state"
	chiTransport "github.com/kailas-cloud/faqbot/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/faqbot/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/faqbot/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/faqbot/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/faqbot/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/faqbot/internal/usecase/knowledge"
	"github.com/kailas-cloud/faqbot/internal/usecase/pipeline"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
	"github.com/kailas-cloud/faqbot/internal/usecase/trigger"
	"github.com/kailas-cloud/faqbot/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	var logFile *logpkg.FileSink
	if cfg.Logging.File != "" {
		logFile = &logpkg.FileSink{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		}
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, logFile)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting faqbot",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("state_driver", cfg.State.Driver),
		zap.String("retrieval_driver", cfg.Retrieval.Driver),
		zap.String("content_dir", cfg.Content.Dir),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterResolutionMetrics()
	metrics.RegisterHTTPMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is shared by the state store, the redis vector store and the embedding cache.
	var store *dbRedis.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			if cfg.State.Driver == config.DriverRedis && cfg.State.DisableFallback {
				logger.Fatal("Redis not ready", zap.Error(err))
			}
			logger.Warn("Redis not ready, continuing degraded", zap.Error(err))
		} else {
			logger.Info("Connected to redis")
		}
	}

	states := buildStateStore(cfg.State, store, logger)

	// Language model (optional)
	var completer *openaiTransport.Completer
	if cfg.LLM.Enabled() {
		completer = openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			Timeout:   cfg.LLM.Timeout(),
			MaxTokens: cfg.LLM.MaxTokens,
			Logger:    logger,
		})
		logger.Info("Language model configured", zap.String("model", cfg.LLM.Model))
	}
	// Pass nil interface (not typed nil pointer!) when no model is configured.
	var llm domain.Completer
	if completer != nil {
		llm = completer
	}

	// Catalogs over the content directory
	source := content.NewFileSource(cfg.Content.Dir, logger)
	dialogs := cataloguc.NewDialogCatalog(source, cfg.Content.DialogTable, logger)
	knowledge := cataloguc.NewKnowledgeCatalog(source, cfg.Content.KnowledgeTable, logger)

	scheduler := cataloguc.NewScheduler(
		cfg.Content.ReloadSchedule,
		time.Duration(cfg.Content.ReloadTimeout)*time.Second,
		logger,
		dialogs, knowledge,
	)
	if err := scheduler.ReloadAll(ctx); err != nil {
		// A catalog that failed to load starts empty; the next reload retries.
		logger.Error("Initial catalog load failed", zap.Error(err))
	}

	// Resolution tiers
	triggers := trigger.New(dialogs, llm, trigger.Config{
		Keywords:         cfg.Trigger.Keywords,
		SimilarityCutoff: cfg.Trigger.SimilarityCutoff,
		Timeout:          cfg.LLM.Timeout(),
	}, logger)

	matcher := knowledgeuc.New(knowledge, llm, knowledgeuc.Config{
		Threshold:         cfg.Knowledge.Threshold,
		TopN:              cfg.Knowledge.TopN,
		CacheTTL:          time.Duration(cfg.Knowledge.CacheTTLSec) * time.Second,
		MinCandidateScore: cfg.Knowledge.MinCandidateScore,
		SemanticOverride:  cfg.Knowledge.SemanticOverride,
		OverrideMaxItems:  cfg.Knowledge.OverrideMaxItems,
		Timeout:           cfg.LLM.Timeout(),
	}, logger)
	knowledge.OnReload(matcher.Invalidate)

	vectors := buildVectorStore(ctx, cfg, store, logger)
	retrievalDeps := retrieval.Deps{Completer: llm}
	var embedder domain.Embedder
	if vectors != nil && cfg.Embedding.Enabled() {
		base := buildEmbedder(cfg.Embedding, store, logger)
		instructions := domain.Instructions{
			Document: cfg.Embedding.DocumentInstruction,
			Query:    cfg.Embedding.QueryInstruction,
		}
		embedder = domain.ForRole(base, instructions, domain.RoleDocument)
		retrievalDeps.Store = vectors
		retrievalDeps.Embedder = embedder
		retrievalDeps.QueryEmbedder = domain.ForRole(base, instructions, domain.RoleQuery)
		logger.Info("Embedders created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}
	retriever := retrieval.New(retrievalDeps, retrieval.Config{
		ChunkSize:     cfg.Retrieval.ChunkSize,
		ChunkOverlap:  cfg.Retrieval.ChunkOverlap,
		Limit:         cfg.Retrieval.Limit,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
		Timeout:       cfg.LLM.Timeout(),
		StoreTimeout:  cfg.Retrieval.StoreTimeout(),
	}, logger)
	logger.Info("Retrieval configured", zap.Bool("grounded", retriever.Enabled()))

	p := pipeline.New(pipeline.Deps{
		States:    states,
		Dialogs:   dialogs,
		Triggers:  triggers,
		Knowledge: matcher,
		Retriever: retriever,
		Reloader:  scheduler,
	}, pipeline.Config{
		StateTTL:    cfg.State.TTL(),
		CancelWords: cfg.Dialog.CancelWords,
		Messages: pipeline.Messages{
			Fallback:       cfg.Messages.Fallback,
			Suggestions:    cfg.Messages.Suggestions,
			Cancelled:      cfg.Messages.Cancelled,
			NoConversation: cfg.Messages.NoConversation,
			TryAgain:       cfg.Messages.TryAgain,
			Apology:        cfg.Messages.Apology,
			FlowComplete:   cfg.Messages.FlowComplete,
		},
	}, logger)

	// Background catalog refresh: schedule plus optional file watching
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start catalog scheduler", zap.Error(err))
	}
	if cfg.Content.Watch {
		watcher := content.NewWatcher(cfg.Content.Dir,
			time.Duration(cfg.Content.DebounceMs)*time.Millisecond, scheduler.OnTablesChanged, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Content watcher stopped", zap.Error(err))
			}
		}()
	}

	// Health service
	healthDeps := healthuc.Deps{States: states}
	if vectors != nil {
		healthDeps.Vectors = vectors
	}
	if embedder != nil {
		healthDeps.Embedding = newHealthChecker(embedder)
	}
	if completer != nil {
		healthDeps.LLM = completer
	}
	healthSvc := healthuc.New(healthDeps, logger)

	// Create chi server
	var documents chiTransport.Documents
	if retriever.Enabled() {
		documents = retriever
	}
	server := chiTransport.NewServer(p, documents, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)

	logger.Info("Server stopped gracefully")
}

// stateStore is what the pipeline and the health check need from the state store.
type stateStore interface {
	pipeline.StateStore
	healthuc.Pinger
}

// buildStateStore returns Redis wrapped with the in-memory fallback, or plain memory.
func buildStateStore(cfg config.StateConfig, store *dbRedis.Store, logger *zap.Logger) stateStore {
	local := staterepo.NewMemoryStore(time.Minute)
	if cfg.Driver == config.DriverMemory || store == nil {
		logger.Warn("Conversation state kept in process memory; dialogs will not survive a restart")
		return local
	}
	remote := staterepo.NewRedisStore(store, cfg.OpTimeout())
	if cfg.DisableFallback {
		return remote
	}
	return staterepo.NewFallbackStore(remote, local, metrics.StateStoreDegraded, logger)
}

// vectorStore is what retrieval and the health check need from the vector store.
type vectorStore interface {
	retrieval.VectorStore
	healthuc.Pinger
}

// buildVectorStore returns nil when retrieval is disabled or its store is unusable.
func buildVectorStore(ctx context.Context, cfg config.Config, store *dbRedis.Store, logger *zap.Logger) vectorStore {
	if !cfg.Embedding.Enabled() || cfg.Retrieval.Driver == config.DriverNone {
		return nil
	}
	switch cfg.Retrieval.Driver {
	case config.DriverRedis:
		vs := chunkrepo.NewRedisStore(store, cfg.Embedding.Dimensions, chunkrepo.HNSWConfig{
			M:           cfg.Retrieval.HNSWM,
			EFConstruct: cfg.Retrieval.HNSWEFConstruct,
			EFRuntime:   cfg.Retrieval.HNSWEFRuntime,
		})
		if err := vs.EnsureIndex(ctx); err != nil {
			logger.Error("Failed to create chunk index, retrieval disabled", zap.Error(err))
			return nil
		}
		return vs
	case config.DriverPostgres:
		gdb, err := gorm.Open(postgres.Open(cfg.Retrieval.DSN), &gorm.Config{})
		if err != nil {
			logger.Error("Failed to connect to postgres, retrieval disabled", zap.Error(err))
			return nil
		}
		vs := chunkrepo.NewPostgresStore(gdb)
		if err := vs.Migrate(ctx); err != nil {
			logger.Error("Failed to migrate chunk tables, retrieval disabled", zap.Error(err))
			return nil
		}
		return vs
	default:
		return chunkrepo.NewMemoryStore()
	}
}

// healthChecker wraps domain.Embedder to implement health.Checker.
type healthChecker struct {
	embedder domain.Embedder
}

func newHealthChecker(embedder domain.Embedder) *healthChecker {
	return &healthChecker{embedder: embedder}
}

func (h *healthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the shared chain OpenAI -> Cached -> Instrumented.
// Role instructions are applied on top, so cache keys include them.
func buildEmbedder(cfg config.EmbeddingConfig, store *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    cfg.Timeout(),
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Model, time.Duration(cfg.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger)
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	}, logger)
}
