package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverRedis    = "redis"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config holds the faqbot configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	State     StateConfig     `yaml:"state"`
	Content   ContentConfig   `yaml:"content"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Messages  MessagesConfig  `yaml:"messages"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File       string `yaml:"file"`  // optional rotated log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Redis connection shared by the state store,
// the redis vector store and the embedding cache.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StateConfig holds conversation state settings.
type StateConfig struct {
	Driver      string `yaml:"driver"` // redis, memory (default: redis)
	TTLSec      int    `yaml:"ttl_sec"`
	OpTimeoutMs int    `yaml:"op_timeout_ms"`
	// DisableFallback turns off keeping dialogs in process memory while Redis is unreachable.
	DisableFallback bool `yaml:"disable_memory_fallback"`
}

// TTL returns the idle lifetime of a dialog.
func (c StateConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// OpTimeout returns the per-operation deadline of the remote store.
func (c StateConfig) OpTimeout() time.Duration { return time.Duration(c.OpTimeoutMs) * time.Millisecond }

// ContentConfig locates the catalog tables.
type ContentConfig struct {
	Dir            string `yaml:"dir"`
	DialogTable    string `yaml:"dialog_table"`
	KnowledgeTable string `yaml:"knowledge_table"`
	ReloadSchedule string `yaml:"reload_schedule"`
	ReloadTimeout  int    `yaml:"reload_timeout_sec"`
	Watch          bool   `yaml:"watch"`
	DebounceMs     int    `yaml:"debounce_ms"`
}

// DialogConfig holds dialog settings.
type DialogConfig struct {
	CancelWords []string `yaml:"cancel_words"`
}

// TriggerConfig holds trigger resolution settings.
type TriggerConfig struct {
	SimilarityCutoff float64             `yaml:"similarity_cutoff"`
	Keywords         map[string][]string `yaml:"keywords"`
}

// KnowledgeConfig holds knowledge matching settings.
type KnowledgeConfig struct {
	Threshold         float64 `yaml:"threshold"`
	TopN              int     `yaml:"top_n"`
	CacheTTLSec       int     `yaml:"cache_ttl_sec"`
	MinCandidateScore float64 `yaml:"min_candidate_score"`
	SemanticOverride  bool    `yaml:"semantic_override"`
	OverrideMaxItems  int     `yaml:"override_max_items"`
}

// RetrievalConfig holds semantic retrieval settings.
type RetrievalConfig struct {
	Driver          string  `yaml:"driver"` // redis, postgres, memory, none (default: memory)
	DSN             string  `yaml:"dsn"`    // postgres only
	HNSWM           int     `yaml:"hnsw_m"`
	HNSWEFConstruct int     `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int     `yaml:"hnsw_ef_runtime"` // zero keeps the index default
	ChunkSize       int     `yaml:"chunk_size"`
	ChunkOverlap    int     `yaml:"chunk_overlap"`
	Limit           int     `yaml:"limit"`
	MinSimilarity   float64 `yaml:"min_similarity"`
	StoreTimeoutMs  int     `yaml:"store_timeout_ms"`
}

// StoreTimeout returns the per-call deadline of the vector store.
func (c RetrievalConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// LLMConfig holds the language-model provider. An empty model disables every
// language-model tier.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Enabled reports whether a language model is configured.
func (c LLMConfig) Enabled() bool { return c.Model != "" }

// Timeout returns the per-call deadline.
func (c LLMConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

// EmbeddingConfig holds the embedding provider. An empty model disables retrieval.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TimeoutMs           int    `yaml:"timeout_ms"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// Enabled reports whether an embedding model is configured.
func (c EmbeddingConfig) Enabled() bool { return c.Model != "" }

// Timeout returns the per-call deadline.
func (c EmbeddingConfig) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

// MessagesConfig overrides the static replies. Blank values keep the built-in text.
type MessagesConfig struct {
	Fallback       string `yaml:"fallback"`
	Suggestions    string `yaml:"suggestions"`
	Cancelled      string `yaml:"cancelled"`
	NoConversation string `yaml:"no_conversation"`
	TryAgain       string `yaml:"try_again"`
	Apology        string `yaml:"apology"`
	FlowComplete   string `yaml:"flow_complete"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, seeds the environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data and decodes, defaults and validates it.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.State.Driver == "" {
		c.State.Driver = DriverRedis
	}
	if c.State.TTLSec <= 0 {
		c.State.TTLSec = 1800
	}
	if c.State.OpTimeoutMs <= 0 {
		c.State.OpTimeoutMs = 500
	}
	if c.Content.Dir == "" {
		c.Content.Dir = "content"
	}
	if c.Content.DialogTable == "" {
		c.Content.DialogTable = "dialog_flows"
	}
	if c.Content.KnowledgeTable == "" {
		c.Content.KnowledgeTable = "knowledge_base"
	}
	if c.Content.ReloadSchedule == "" {
		c.Content.ReloadSchedule = "@every 5m"
	}
	if c.Content.ReloadTimeout <= 0 {
		c.Content.ReloadTimeout = 30
	}
	if c.Trigger.SimilarityCutoff <= 0 {
		c.Trigger.SimilarityCutoff = 70
	}
	if c.Knowledge.Threshold <= 0 {
		c.Knowledge.Threshold = 0.72
	}
	if c.Knowledge.TopN <= 0 {
		c.Knowledge.TopN = 3
	}
	if c.Knowledge.CacheTTLSec <= 0 {
		c.Knowledge.CacheTTLSec = 600
	}
	if c.Retrieval.Driver == "" {
		c.Retrieval.Driver = DriverMemory
	}
	if c.Retrieval.HNSWM <= 0 {
		c.Retrieval.HNSWM = 16
	}
	if c.Retrieval.HNSWEFConstruct <= 0 {
		c.Retrieval.HNSWEFConstruct = 200
	}
	if c.Retrieval.ChunkSize <= 0 {
		c.Retrieval.ChunkSize = 800
	}
	if c.Retrieval.ChunkOverlap <= 0 {
		c.Retrieval.ChunkOverlap = 100
	}
	if c.Retrieval.Limit <= 0 {
		c.Retrieval.Limit = 5
	}
	if c.Retrieval.MinSimilarity <= 0 {
		c.Retrieval.MinSimilarity = 0.75
	}
	if c.Retrieval.StoreTimeoutMs <= 0 {
		c.Retrieval.StoreTimeoutMs = 2000
	}
	if c.LLM.TimeoutMs <= 0 {
		c.LLM.TimeoutMs = 15000
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 10000
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 100
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 5
		}
		if c.Logging.MaxAgeDays <= 0 {
			c.Logging.MaxAgeDays = 28
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.State.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for state.driver %q", DriverRedis)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("state.driver must be %q or %q, got %q", DriverRedis, DriverMemory, c.State.Driver)
	}

	switch c.Retrieval.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for retrieval.driver %q", DriverRedis)
		}
		if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("embedding.dimensions is required for retrieval.driver %q", DriverRedis)
		}
	case DriverPostgres:
		if c.Retrieval.DSN == "" {
			return fmt.Errorf("retrieval.dsn is required for retrieval.driver %q", DriverPostgres)
		}
	case DriverMemory, DriverNone:
	default:
		return fmt.Errorf("retrieval.driver must be one of redis, postgres, memory, none, got %q", c.Retrieval.Driver)
	}

	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.Retrieval.HNSWEFRuntime < 0 {
		return fmt.Errorf("retrieval.hnsw_ef_runtime must not be negative, got %d", c.Retrieval.HNSWEFRuntime)
	}
	if c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("retrieval.min_similarity must be in (0, 1], got %g", c.Retrieval.MinSimilarity)
	}
	if c.Knowledge.Threshold > 1 {
		return fmt.Errorf("knowledge.threshold must be in (0, 1], got %g", c.Knowledge.Threshold)
	}
	if c.Knowledge.MinCandidateScore < 0 || c.Knowledge.MinCandidateScore > c.Knowledge.Threshold {
		return fmt.Errorf("knowledge.min_candidate_score must be in [0, threshold], got %g", c.Knowledge.MinCandidateScore)
	}
	if c.Knowledge.SemanticOverride && !c.LLM.Enabled() {
		return fmt.Errorf("knowledge.semantic_override requires llm.model")
	}
	if c.Trigger.SimilarityCutoff > 100 {
		return fmt.Errorf("trigger.similarity_cutoff must be in (0, 100], got %g", c.Trigger.SimilarityCutoff)
	}
	if c.Embedding.Enabled() && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.api_key or embedding.base_url is required when embedding.model is set")
	}
	if _, err := cron.ParseStandard(c.Content.ReloadSchedule); err != nil {
		return fmt.Errorf("content.reload_schedule %q: %w", c.Content.ReloadSchedule, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
