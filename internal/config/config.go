package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CITEGRAPH_"

// Config enumerates every option recognised by the pipeline. Each component
// receives the values it needs at construction; nothing reads the
// environment after Load returns.
type Config struct {
	TemporalAddress string `koanf:"temporal_address"`
	TaskQueue       string `koanf:"task_queue"`

	GraphBackend  string `koanf:"graph_backend"`
	Neo4jURI      string `koanf:"neo4j_uri"`
	Neo4jUser     string `koanf:"neo4j_user"`
	Neo4jPassword string `koanf:"neo4j_password"`
	Neo4jDatabase string `koanf:"neo4j_database"`

	VectorBackend            string `koanf:"vector_backend"`
	QdrantURL                string `koanf:"qdrant_url"`
	QdrantAPIKey             string `koanf:"qdrant_api_key"`
	Collection               string `koanf:"collection"`
	ChromemPath              string `koanf:"chromem_path"`
	ReplaceVectorsOnReingest bool   `koanf:"replace_vectors_on_reingest"`

	DatabaseURL string `koanf:"database_url"`

	EmbedProviders   string `koanf:"embed_providers"`
	TextEmbedDim     int    `koanf:"text_embed_dim"`
	OllamaBaseURL    string `koanf:"ollama_base_url"`
	OllamaEmbedModel string `koanf:"ollama_embed_model"`
	OpenAIEmbedModel string `koanf:"openai_embed_model"`
	ImageEmbedder    string `koanf:"image_embedder"`
	ImageEmbedURL    string `koanf:"image_embed_url"`
	ImageEmbedDim    int    `koanf:"image_embed_dim"`

	LLMProviders  string        `koanf:"llm_providers"`
	ChatModel     string        `koanf:"chat_model"`
	OpenAIAPIKey  string        `koanf:"openai_api_key"`
	OpenAIBaseURL string        `koanf:"openai_base_url"`
	GroqAPIKey    string        `koanf:"groq_api_key"`
	GroqBaseURL   string        `koanf:"groq_base_url"`
	LLMTimeout    time.Duration `koanf:"llm_timeout"`

	EnrichStrategy string `koanf:"enrich_strategy"`

	BackfillBatch     int `koanf:"backfill_batch"`
	InsightMaxCited   int `koanf:"insight_max_cited"`
	InsightMaxChunks  int `koanf:"insight_max_chunks"`
	IngestConcurrency int `koanf:"ingest_concurrency"`
	CorpusMaxChildren int `koanf:"corpus_max_children"`

	FetchMaxAttempts int           `koanf:"fetch_max_attempts"`
	FetchBaseDelay   time.Duration `koanf:"fetch_base_delay"`
	FetchMultiplier  float64       `koanf:"fetch_multiplier"`
	FetchMaxDelay    time.Duration `koanf:"fetch_max_delay"`
	HTTPTimeout      time.Duration `koanf:"http_timeout"`

	ArxivAPIURL      string        `koanf:"arxiv_api_url"`
	ArxivMinInterval time.Duration `koanf:"arxiv_min_interval"`
	UserAgent        string        `koanf:"user_agent"`

	RedisURL        string        `koanf:"redis_url"`
	InsightCacheTTL time.Duration `koanf:"insight_cache_ttl"`

	DataDir string `koanf:"data_dir"`
	LogMode string `koanf:"log_mode"`
}

func Default() *Config {
	return &Config{
		TemporalAddress: "localhost:7233",
		TaskQueue:       "citegraph",

		GraphBackend:  "neo4j",
		Neo4jURI:      "neo4j://localhost:7687",
		Neo4jUser:     "neo4j",
		Neo4jDatabase: "neo4j",

		VectorBackend: "qdrant",
		QdrantURL:     "http://localhost:6333",
		Collection:    "papers",

		EmbedProviders:   "mock",
		TextEmbedDim:     384,
		OllamaBaseURL:    "http://localhost:11434",
		OllamaEmbedModel: "nomic-embed-text",
		OpenAIEmbedModel: "text-embedding-3-small",
		ImageEmbedder:    "none",
		ImageEmbedDim:    512,

		LLMProviders: "mock",
		ChatModel:    "openai/gpt-oss-20b",
		GroqBaseURL:  "https://api.groq.com/openai/v1",
		LLMTimeout:   60 * time.Second,

		EnrichStrategy: "multi_step",

		BackfillBatch:     20,
		InsightMaxCited:   5,
		InsightMaxChunks:  5,
		IngestConcurrency: 2,
		CorpusMaxChildren: 4,

		FetchMaxAttempts: 5,
		FetchBaseDelay:   time.Second,
		FetchMultiplier:  2,
		FetchMaxDelay:    20 * time.Second,
		HTTPTimeout:      60 * time.Second,

		ArxivAPIURL:      "https://export.arxiv.org/api/query",
		ArxivMinInterval: 3 * time.Second,
		UserAgent:        "citegraph/1.0 (+https://arxiv.org/help/api)",

		InsightCacheTTL: 24 * time.Hour,

		DataDir: "./data",
		LogMode: "dev",
	}
}

// Load layers defaults, the optional YAML file at path and CITEGRAPH_*
// environment overrides, then fills unset credentials from the conventional
// variables (OPENAI_API_KEY, NEO4J_URI, ...).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.applyConventionalEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyConventionalEnv() {
	fill(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	fill(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	fill(&c.GroqAPIKey, "GROQ_API_KEY")
	fill(&c.Neo4jPassword, "NEO4J_PASSWORD")
	fill(&c.QdrantAPIKey, "QDRANT_API_KEY")
	fill(&c.DatabaseURL, "DATABASE_URL")
	fill(&c.RedisURL, "REDIS_URL")
	override(&c.Neo4jURI, "NEO4J_URI", Default().Neo4jURI)
	override(&c.Neo4jUser, "NEO4J_USER", Default().Neo4jUser)
	override(&c.QdrantURL, "QDRANT_URL", Default().QdrantURL)
}

func fill(dst *string, key string) {
	if *dst != "" {
		return
	}
	*dst = os.Getenv(key)
}

// override replaces a value still at its default with the conventional
// variable, so CITEGRAPH_* keeps precedence.
func override(dst *string, key, def string) {
	if *dst != def {
		return
	}
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var (
	graphBackends  = map[string]bool{"neo4j": true, "postgres": true, "memory": true}
	vectorBackends = map[string]bool{"qdrant": true, "pgvector": true, "chromem": true}
	strategies     = map[string]bool{"multi_step": true, "single_shot": true, "none": true}
	imageEmbedders = map[string]bool{"none": true, "": true, "mock": true, "http": true}
)

func (c *Config) Validate() error {
	if !graphBackends[c.GraphBackend] {
		return fmt.Errorf("invalid graph_backend %q: must be one of neo4j, postgres, memory", c.GraphBackend)
	}
	if !vectorBackends[c.VectorBackend] {
		return fmt.Errorf("invalid vector_backend %q: must be one of qdrant, pgvector, chromem", c.VectorBackend)
	}
	if !strategies[c.EnrichStrategy] {
		return fmt.Errorf("invalid enrich_strategy %q: must be one of multi_step, single_shot, none", c.EnrichStrategy)
	}
	if !imageEmbedders[c.ImageEmbedder] {
		return fmt.Errorf("invalid image_embedder %q: must be one of none, mock, http", c.ImageEmbedder)
	}
	if c.ImageEmbedder == "http" && c.ImageEmbedURL == "" {
		return fmt.Errorf("image_embed_url is required when image_embedder is http")
	}
	if (c.GraphBackend == "postgres" || c.VectorBackend == "pgvector") && c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required for the postgres graph and pgvector backends")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	for name, v := range map[string]int{
		"text_embed_dim":      c.TextEmbedDim,
		"image_embed_dim":     c.ImageEmbedDim,
		"backfill_batch":      c.BackfillBatch,
		"insight_max_cited":   c.InsightMaxCited,
		"insight_max_chunks":  c.InsightMaxChunks,
		"ingest_concurrency":  c.IngestConcurrency,
		"corpus_max_children": c.CorpusMaxChildren,
		"fetch_max_attempts":  c.FetchMaxAttempts,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.FetchMultiplier < 1 {
		return fmt.Errorf("fetch_multiplier must be >= 1")
	}
	return nil
}
