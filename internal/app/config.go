package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/course-rag-backend/internal/embedding"
	"github.com/yungbote/course-rag-backend/internal/platform/envutil"
	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const (
	VectorProviderMemory   = "memory"
	VectorProviderSQLite   = "sqlite"
	VectorProviderPostgres = "postgres"
	VectorProviderQdrant   = "qdrant"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config is resolved from defaults, then the optional YAML file named by
// RAG_CONFIG_FILE, then environment variables.
type Config struct {
	AnthropicAPIKey         string `yaml:"anthropic_api_key"`
	AnthropicModel          string `yaml:"anthropic_model"`
	AnthropicBaseURL        string `yaml:"anthropic_base_url"`
	AnthropicMaxRetries     int    `yaml:"anthropic_max_retries"`
	AnthropicTimeoutSeconds int    `yaml:"anthropic_timeout_seconds"`

	EmbeddingProvider string `yaml:"embedding_provider"`
	EmbeddingModel    string `yaml:"embedding_model"`
	EmbeddingDim      int    `yaml:"embedding_dim"`

	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	MaxResults    int `yaml:"max_results"`
	MaxHistory    int `yaml:"max_history"`
	MaxToolRounds int `yaml:"max_tool_rounds"`

	DocsPath  string `yaml:"docs_path"`
	DocsWatch bool   `yaml:"docs_watch"`

	VectorProvider        string `yaml:"vector_provider"`
	SQLitePath            string `yaml:"sqlite_path"`
	PostgresHost          string `yaml:"postgres_host"`
	PostgresPort          string `yaml:"postgres_port"`
	PostgresUser          string `yaml:"postgres_user"`
	PostgresPassword      string `yaml:"postgres_password"`
	PostgresName          string `yaml:"postgres_name"`
	QdrantURL             string `yaml:"qdrant_url"`
	QdrantCollection      string `yaml:"qdrant_collection"`
	QdrantNamespacePrefix string `yaml:"qdrant_namespace_prefix"`

	SessionStore      string `yaml:"session_store"`
	RedisAddr         string `yaml:"redis_addr"`
	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`

	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`
}

func DefaultConfig() Config {
	return Config{
		AnthropicModel:          "claude-sonnet-4-20250514",
		AnthropicBaseURL:        "https://api.anthropic.com",
		AnthropicMaxRetries:     4,
		AnthropicTimeoutSeconds: 60,

		EmbeddingProvider: embedding.ProviderHash,
		EmbeddingModel:    "all-MiniLM-L6-v2",
		EmbeddingDim:      embedding.DefaultDimension,

		ChunkSize:     800,
		ChunkOverlap:  100,
		MaxResults:    5,
		MaxHistory:    2,
		MaxToolRounds: 2,

		DocsPath: "../docs",

		VectorProvider:        VectorProviderMemory,
		SQLitePath:            "./chroma_db/rag.db",
		PostgresHost:          "localhost",
		PostgresPort:          "5432",
		PostgresUser:          "postgres",
		PostgresName:          "course_rag",
		QdrantCollection:      "course_rag",
		QdrantNamespacePrefix: "rag",

		SessionStore:      SessionStoreMemory,
		SessionTTLSeconds: 86400,

		Port:    "8000",
		LogMode: "development",
	}
}

func (c Config) AnthropicTimeout() time.Duration {
	return time.Duration(c.AnthropicTimeoutSeconds) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// LoadConfig does not validate; callers run Validate.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()
	if path := envutil.String("RAG_CONFIG_FILE", ""); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(log, &cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(log *logger.Logger, cfg *Config) {
	envString(log, "ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
	envString(log, "ANTHROPIC_MODEL", &cfg.AnthropicModel)
	envString(log, "ANTHROPIC_BASE_URL", &cfg.AnthropicBaseURL)
	envInt(log, "ANTHROPIC_MAX_RETRIES", &cfg.AnthropicMaxRetries)
	envInt(log, "ANTHROPIC_TIMEOUT_SECONDS", &cfg.AnthropicTimeoutSeconds)

	envString(log, "EMBEDDING_PROVIDER", &cfg.EmbeddingProvider)
	envString(log, "EMBEDDING_MODEL", &cfg.EmbeddingModel)
	envInt(log, "EMBEDDING_DIM", &cfg.EmbeddingDim)

	envInt(log, "CHUNK_SIZE", &cfg.ChunkSize)
	envInt(log, "CHUNK_OVERLAP", &cfg.ChunkOverlap)
	envInt(log, "MAX_RESULTS", &cfg.MaxResults)
	envInt(log, "MAX_HISTORY", &cfg.MaxHistory)
	envInt(log, "MAX_TOOL_ROUNDS", &cfg.MaxToolRounds)

	envString(log, "DOCS_PATH", &cfg.DocsPath)
	envBool(log, "DOCS_WATCH", &cfg.DocsWatch)

	envString(log, "VECTOR_PROVIDER", &cfg.VectorProvider)
	envString(log, "SQLITE_PATH", &cfg.SQLitePath)
	envString(log, "POSTGRES_HOST", &cfg.PostgresHost)
	envString(log, "POSTGRES_PORT", &cfg.PostgresPort)
	envString(log, "POSTGRES_USER", &cfg.PostgresUser)
	envString(log, "POSTGRES_PASSWORD", &cfg.PostgresPassword)
	envString(log, "POSTGRES_NAME", &cfg.PostgresName)
	envString(log, "QDRANT_URL", &cfg.QdrantURL)
	envString(log, "QDRANT_COLLECTION", &cfg.QdrantCollection)
	envString(log, "QDRANT_NAMESPACE_PREFIX", &cfg.QdrantNamespacePrefix)

	envString(log, "SESSION_STORE", &cfg.SessionStore)
	envString(log, "REDIS_ADDR", &cfg.RedisAddr)
	envInt(log, "SESSION_TTL_SECONDS", &cfg.SessionTTLSeconds)

	envString(log, "PORT", &cfg.Port)
	envString(log, "LOG_MODE", &cfg.LogMode)
}

func envString(log *logger.Logger, key string, dst *string) {
	v, ok := envutil.Lookup(key)
	if !ok {
		return
	}
	*dst = v
	logOverride(log, key)
}

func envInt(log *logger.Logger, key string, dst *int) {
	v, ok := envutil.Lookup(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an integer, keeping previous value", "env_var", key, "value", v)
		}
		return
	}
	*dst = i
	logOverride(log, key)
}

func envBool(log *logger.Logger, key string, dst *bool) {
	if _, ok := envutil.Lookup(key); !ok {
		return
	}
	*dst = envutil.Bool(key, *dst)
	logOverride(log, key)
}

func logOverride(log *logger.Logger, key string) {
	if log != nil {
		log.Debug("Environment variable found, using environment", "env_var", key)
	}
}

type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.MaxResults < 1 || c.MaxResults > 20:
		return &ConfigError{Field: "MAX_RESULTS", Value: c.MaxResults, Reason: "must be between 1 and 20"}
	case c.ChunkSize <= 0:
		return &ConfigError{Field: "CHUNK_SIZE", Value: c.ChunkSize, Reason: "must be positive"}
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return &ConfigError{Field: "CHUNK_OVERLAP", Value: c.ChunkOverlap, Reason: "must be >= 0 and less than CHUNK_SIZE"}
	case c.MaxHistory <= 0:
		return &ConfigError{Field: "MAX_HISTORY", Value: c.MaxHistory, Reason: "must be positive"}
	case c.MaxToolRounds < 1:
		return &ConfigError{Field: "MAX_TOOL_ROUNDS", Value: c.MaxToolRounds, Reason: "must be at least 1"}
	case strings.TrimSpace(c.AnthropicModel) == "":
		return &ConfigError{Field: "ANTHROPIC_MODEL", Value: c.AnthropicModel, Reason: "is required"}
	case strings.TrimSpace(c.EmbeddingModel) == "":
		return &ConfigError{Field: "EMBEDDING_MODEL", Value: c.EmbeddingModel, Reason: "is required"}
	case c.EmbeddingDim <= 0:
		return &ConfigError{Field: "EMBEDDING_DIM", Value: c.EmbeddingDim, Reason: "must be positive"}
	}
	if !oneOf(c.VectorProvider, VectorProviderMemory, VectorProviderSQLite, VectorProviderPostgres, VectorProviderQdrant) {
		return &ConfigError{Field: "VECTOR_PROVIDER", Value: c.VectorProvider, Reason: "unknown provider"}
	}
	if !oneOf(c.SessionStore, SessionStoreMemory, SessionStoreRedis) {
		return &ConfigError{Field: "SESSION_STORE", Value: c.SessionStore, Reason: "unknown session store"}
	}
	if !oneOf(c.EmbeddingProvider, embedding.ProviderHash, embedding.ProviderOpenAI) {
		return &ConfigError{Field: "EMBEDDING_PROVIDER", Value: c.EmbeddingProvider, Reason: "unknown provider"}
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
