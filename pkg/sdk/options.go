package faqbot

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	contentDir     string
	dialogTable    string
	knowledgeTable string
	reloadSchedule string

	addrs           []string
	password        string
	disableFallback bool

	embedder   Embedder
	dimensions int
	completer  Completer

	stateTTL    time.Duration
	cancelWords []string
	messages    Messages

	minSimilarity float64

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithContentDir sets the directory holding the dialog and knowledge tables.
// Default: "content".
func WithContentDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.contentDir = dir
	})
}

// WithTables overrides the table names read from the content directory.
// Defaults: "dialog_flows" and "knowledge_base".
func WithTables(dialog, knowledge string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dialogTable = dialog
		c.knowledgeTable = knowledge
	})
}

// WithReloadSchedule reloads the catalogs in the background on a cron
// schedule such as "@every 5m". Without it catalogs change only on Reload.
func WithReloadSchedule(schedule string) Option {
	return optionFunc(func(c *clientConfig) {
		c.reloadSchedule = schedule
	})
}

// WithRedis keeps conversation state and ingested chunks in Redis 8+.
// State falls back to process memory while Redis is unreachable.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithoutStateFallback makes Redis failures surface as ErrStateStore
// instead of switching to process memory.
func WithoutStateFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.disableFallback = true
	})
}

// WithEmbedder enables semantic retrieval with the given embedding provider.
// dim is the vector dimension it produces; it sizes the Redis vector index.
func WithEmbedder(e Embedder, dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dim
	})
}

// WithCompleter enables the language-model tiers: trigger classification,
// knowledge override and answer synthesis.
func WithCompleter(l Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = l
	})
}

// WithStateTTL sets how long an idle dialog survives. Default: 30 minutes.
func WithStateTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.stateTTL = ttl
	})
}

// WithCancelWords replaces the words that end a dialog from any step.
func WithCancelWords(words ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cancelWords = words
	})
}

// WithMessages overrides the static replies. Blank fields keep their defaults.
func WithMessages(m Messages) Option {
	return optionFunc(func(c *clientConfig) {
		c.messages = m
	})
}

// WithMinSimilarity sets the cosine similarity a chunk needs to ground an answer.
// Default: 0.75.
func WithMinSimilarity(s float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.minSimilarity = s
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger sets the logger of the engine internals. Default: no-op.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
