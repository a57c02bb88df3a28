// Package config loads the ingestion engine's runtime configuration from
// the environment: typed fields, defaulted getters, no external config
// file format.
package config

import (
	"strings"
	"time"

	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// Chunking holds the thresholds the embedding service's collect phase
// (§4.7 Phase 1) uses to decide whether a content view is inlined or split
// into EmbeddingChunk children.
type Chunking struct {
	MaxChars        int
	MaxLines        int
	LineOverlap     int
	MinCharsToEmbed int
}

// Concurrency bounds the worker pools the processor spins up per phase
// (§4.9, §5).
type Concurrency struct {
	Limit int
}

// GraphStore carries the Neo4j driver settings (§6.3, §4.11).
type GraphStore struct {
	URI            string
	Username       string
	Password       string
	Database       string
	TimeoutSeconds int
	MaxPoolSize    int
}

// EntityService carries the HTTP entity-extraction client settings (§6.1).
type EntityService struct {
	BaseURL           string
	ClassifyPrefixLen int
	BatchSize         int
	MaxTextsPerCall   int
	BaseTimeout       time.Duration
	PerTextTimeout    time.Duration
	ConfidenceMin     float64
	DisabledDomains   []string
}

// EmbeddingProvider selects and configures the batch embedding collaborator
// (§6.2, §4.14).
type EmbeddingProvider struct {
	Kind       string // "openai" | "local" | "onprem"
	APIKey     string
	Model      string
	BaseURL    string
	BatchSize  int
	Dimensions int
}

// Watcher carries the debounced filesystem watcher's settings (§4.10).
type Watcher struct {
	DebounceInterval time.Duration
}

type Config struct {
	Chunking          Chunking
	Concurrency       Concurrency
	GraphStore        GraphStore
	EntityService     EntityService
	EmbeddingProvider EmbeddingProvider
	Watcher           Watcher

	MaxRetries          int
	SkipEmbeddingTypes  []string
	VirtualPathPrefix   string
}

// Load reads every field from the environment, falling back to defaults
// that mirror the values named throughout spec.md (concurrency 10, debounce
// 500ms, entity batch 1000, HTTP text batch 100). The one exception is
// EntityService.ConfidenceMin, which is fixed at 0.5 and not read from the
// environment.
func Load(log *logger.Logger) Config {
	return Config{
		Chunking: Chunking{
			MaxChars:        GetEnvAsInt("CHUNK_MAX_CHARS", 1500, log),
			MaxLines:        GetEnvAsInt("CHUNK_MAX_LINES", 120, log),
			LineOverlap:     GetEnvAsInt("CHUNK_LINE_OVERLAP", 3, log),
			MinCharsToEmbed: GetEnvAsInt("CHUNK_MIN_CHARS_TO_EMBED", 2, log),
		},
		Concurrency: Concurrency{
			Limit: GetEnvAsInt("INGEST_CONCURRENCY", 10, log),
		},
		GraphStore: GraphStore{
			URI:            GetEnv("GRAPH_URI", "", log),
			Username:       GetEnv("GRAPH_USERNAME", "neo4j", log),
			Password:       GetEnv("GRAPH_PASSWORD", "", log),
			Database:       GetEnv("GRAPH_DATABASE", "", log),
			TimeoutSeconds: GetEnvAsInt("GRAPH_TIMEOUT_SECONDS", 10, log),
			MaxPoolSize:    GetEnvAsInt("GRAPH_MAX_POOL_SIZE", 50, log),
		},
		EntityService: EntityService{
			BaseURL:           strings.TrimRight(GetEnv("ENTITY_SERVICE_URL", "http://localhost:8088", log), "/"),
			ClassifyPrefixLen: GetEnvAsInt("ENTITY_CLASSIFY_PREFIX_LEN", 2000, log),
			BatchSize:         GetEnvAsInt("ENTITY_BATCH_SIZE", 1000, log),
			MaxTextsPerCall:   GetEnvAsInt("ENTITY_MAX_TEXTS_PER_CALL", 100, log),
			BaseTimeout:       GetEnvAsDuration("ENTITY_BASE_TIMEOUT", 10*time.Second, log),
			PerTextTimeout:    GetEnvAsDuration("ENTITY_PER_TEXT_TIMEOUT", 100*time.Millisecond, log),
			ConfidenceMin:     0.5,
			DisabledDomains:   GetEnvAsStringSlice("ENTITY_DISABLED_DOMAINS", nil, log),
		},
		EmbeddingProvider: EmbeddingProvider{
			Kind:       GetEnv("EMBEDDING_PROVIDER", "openai", log),
			APIKey:     GetEnv("OPENAI_API_KEY", "", log),
			Model:      GetEnv("EMBEDDING_MODEL", "text-embedding-3-small", log),
			BaseURL:    GetEnv("EMBEDDING_BASE_URL", "", log),
			BatchSize:  GetEnvAsInt("EMBEDDING_BATCH_SIZE", 64, log),
			Dimensions: GetEnvAsInt("EMBEDDING_DIMENSIONS", 1536, log),
		},
		Watcher: Watcher{
			DebounceInterval: GetEnvAsDuration("WATCHER_DEBOUNCE", 500*time.Millisecond, log),
		},
		MaxRetries:         GetEnvAsInt("MAX_RETRIES", 3, log),
		SkipEmbeddingTypes: GetEnvAsStringSlice("SKIP_EMBEDDING_TYPES", []string{"price", "date", "quantity", "percentage"}, log),
		VirtualPathPrefix:  GetEnv("VIRTUAL_PATH_PREFIX", "virtual://", log),
	}
}
