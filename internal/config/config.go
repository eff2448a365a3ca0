// Package config resolves and validates the immutable configuration value
// handed to every pipeline component: backend selection and credentials,
// embedding service settings, ingestion limits, collection routing, and the
// ordered business-domain patterns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	ingerr "github.com/Aman-CERP/codevec/internal/errors"
)

// Backend kinds selectable via VECTOR_BACKEND.
const (
	BackendManaged = "managed"
	BackendLocal   = "local"
)

// Config is the resolved, validated configuration for one ingestion run.
// It is constructed once and never mutated afterwards.
type Config struct {
	// ReposBaseDir is the directory under which repository trees live.
	ReposBaseDir string

	Backend   BackendConfig
	Embedding EmbeddingConfig
	Ingestion IngestionConfig

	// Collections routes language tags to collection names.
	Collections *CollectionMap

	// Domains classifies chunks into business domains.
	Domains *DomainClassifier

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string
	// LogFile is the log file path. Empty selects the default.
	LogFile string
}

// BackendConfig selects and configures the vector backend.
type BackendConfig struct {
	// Kind is "managed" (Qdrant) or "local" (SurrealDB).
	Kind string

	QdrantURL    string
	QdrantAPIKey string

	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string
}

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	// BaseURL is the service root; requests go to BaseURL + "/embeddings".
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimension is the expected vector dimension.
	Dimension int
	// BatchSize is the maximum number of texts per embedding request.
	BatchSize int
	// RateLimit caps concurrent in-flight embedding requests process-wide.
	RateLimit int
	// RequestTimeout bounds each embedding HTTP request.
	RequestTimeout time.Duration
	// MaxRetries is the retry count for transient failures.
	MaxRetries int
	// MaxChunkChars truncates chunk text sent for embedding.
	MaxChunkChars int
	// CacheSize is the embedding LRU cache capacity; 0 disables the cache.
	CacheSize int
}

// IngestionConfig configures file discovery and checkpointing.
type IngestionConfig struct {
	// MaxFileSize in bytes; larger files are skipped with a warning.
	MaxFileSize int64
	// SkipDirs are directory names excluded at any depth.
	SkipDirs []string
	// CheckpointPath is the checkpoint file location.
	CheckpointPath string
	// CheckpointFrequency maps language tag to the number of files between
	// checkpoint saves. A value of 0 means checkpoint after every batch.
	CheckpointFrequency map[string]int
	// DefaultCheckpointFrequency applies to languages not in the map.
	DefaultCheckpointFrequency int
}

// Default limits mirrored from the production deployment.
const (
	DefaultDimension           = 4096
	DefaultBatchSize           = 50
	DefaultRateLimit           = 4
	DefaultRequestTimeout      = 120 * time.Second
	DefaultMaxRetries          = 3
	DefaultMaxFileSize         = 500_000
	DefaultMaxChunkChars       = 131_000
	DefaultCheckpointFrequency = 10
	DefaultCheckpointPath      = "./ingestion_checkpoint.json"
	DefaultEmbeddingCacheSize  = 4096
)

// DefaultSkipDirs are directory names excluded from every walk, at any depth.
func DefaultSkipDirs() []string {
	return []string{
		".git",
		"node_modules",
		"target",
		"__pycache__",
		".pytest_cache",
		"dist",
		"build",
		"public",
	}
}

// Default returns a Config with every tunable at its default and no
// credentials. Callers normally go through FromEnv instead.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:      BackendManaged,
			SurrealNS: "codevec",
			SurrealDB: "vectors",
		},
		Embedding: EmbeddingConfig{
			Dimension:      DefaultDimension,
			BatchSize:      DefaultBatchSize,
			RateLimit:      DefaultRateLimit,
			RequestTimeout: DefaultRequestTimeout,
			MaxRetries:     DefaultMaxRetries,
			MaxChunkChars:  DefaultMaxChunkChars,
			CacheSize:      DefaultEmbeddingCacheSize,
		},
		Ingestion: IngestionConfig{
			MaxFileSize:                DefaultMaxFileSize,
			SkipDirs:                   DefaultSkipDirs(),
			CheckpointPath:             DefaultCheckpointPath,
			CheckpointFrequency:        map[string]int{},
			DefaultCheckpointFrequency: DefaultCheckpointFrequency,
		},
		Collections: DefaultCollectionMap(),
		Domains:     DefaultDomainClassifier(),
		LogLevel:    "info",
	}
}

// FromEnv builds a Config from environment variables, loading a .env file
// first when present. The returned config is already validated.
func FromEnv() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("REPOS_BASE_DIR"); v != "" {
		cfg.ReposBaseDir = v
	}
	if v := os.Getenv("VECTOR_BACKEND"); v != "" {
		cfg.Backend.Kind = v
	}
	cfg.Backend.QdrantURL = os.Getenv("QDRANT_URL")
	cfg.Backend.QdrantAPIKey = os.Getenv("QDRANT_API_KEY")
	cfg.Backend.SurrealURL = os.Getenv("SURREALDB_URL")
	if v := os.Getenv("SURREALDB_NS"); v != "" {
		cfg.Backend.SurrealNS = v
	}
	if v := os.Getenv("SURREALDB_DB"); v != "" {
		cfg.Backend.SurrealDB = v
	}
	cfg.Backend.SurrealUser = os.Getenv("SURREALDB_USER")
	cfg.Backend.SurrealPass = os.Getenv("SURREALDB_PASS")

	cfg.Embedding.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	cfg.Embedding.APIKey = os.Getenv("EMBEDDING_API_KEY")
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d <= 0 {
			return nil, ingerr.ConfigError(fmt.Sprintf("EMBEDDING_DIMENSION must be a positive integer, got %q", v), err)
		}
		cfg.Embedding.Dimension = d
	}
	if v := os.Getenv("EMBEDDING_BATCH_SIZE"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil || b <= 0 {
			return nil, ingerr.ConfigError(fmt.Sprintf("EMBEDDING_BATCH_SIZE must be a positive integer, got %q", v), err)
		}
		cfg.Embedding.BatchSize = b
	}
	if v := os.Getenv("EMBEDDING_RATE_LIMIT"); v != "" {
		r, err := strconv.Atoi(v)
		if err != nil || r <= 0 {
			return nil, ingerr.ConfigError(fmt.Sprintf("EMBEDDING_RATE_LIMIT must be a positive integer, got %q", v), err)
		}
		cfg.Embedding.RateLimit = r
	}
	if v := os.Getenv("CHECKPOINT_PATH"); v != "" {
		cfg.Ingestion.CheckpointPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fails fast with an error naming the
// missing or invalid field. Only validation performed here may abort the run.
func (c *Config) Validate() error {
	if c.Embedding.BaseURL == "" {
		return ingerr.New(ingerr.ErrCodeMissingCredential, "EMBEDDING_BASE_URL is required", nil).
			WithSuggestion("set EMBEDDING_BASE_URL to the embedding service root URL")
	}
	if c.Embedding.Model == "" {
		return ingerr.ConfigError("EMBEDDING_MODEL is required", nil)
	}
	if c.Embedding.Dimension <= 0 {
		return ingerr.ConfigError("embedding dimension must be positive", nil)
	}
	if c.Embedding.BatchSize <= 0 {
		return ingerr.ConfigError("embedding batch size must be positive", nil)
	}
	if c.Embedding.RateLimit <= 0 {
		return ingerr.ConfigError("embedding rate limit must be positive", nil)
	}

	switch c.Backend.Kind {
	case BackendManaged:
		if c.Backend.QdrantURL == "" {
			return ingerr.New(ingerr.ErrCodeMissingCredential, "QDRANT_URL is required for the managed backend", nil)
		}
		if c.Backend.QdrantAPIKey == "" {
			return ingerr.New(ingerr.ErrCodeMissingCredential, "QDRANT_API_KEY is required for the managed backend", nil)
		}
	case BackendLocal:
		if c.Backend.SurrealURL == "" {
			return ingerr.New(ingerr.ErrCodeMissingCredential, "SURREALDB_URL is required for the local backend", nil)
		}
	default:
		return ingerr.ConfigError(fmt.Sprintf("VECTOR_BACKEND must be %q or %q, got %q", BackendManaged, BackendLocal, c.Backend.Kind), nil)
	}

	if c.Collections == nil {
		return ingerr.ConfigError("collection map is required", nil)
	}
	for _, lang := range SupportedLanguages() {
		if _, ok := c.Collections.ForLanguage(lang); !ok {
			return ingerr.New(ingerr.ErrCodeUnknownLanguage,
				fmt.Sprintf("language %q has no configured collection", lang), nil)
		}
	}
	return nil
}

// CheckpointEvery returns the per-language checkpoint frequency.
// Zero means checkpoint after every batch.
func (c *Config) CheckpointEvery(language string) int {
	if n, ok := c.Ingestion.CheckpointFrequency[language]; ok {
		return n
	}
	return c.Ingestion.DefaultCheckpointFrequency
}
