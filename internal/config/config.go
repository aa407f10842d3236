package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Model is preferred when installed; otherwise the first installed model
	// whose name contains ModelFamily is used.
	Model        string `mapstructure:"model"`
	ModelFamily  string `mapstructure:"model_family"`
	SystemPrompt string `mapstructure:"system_prompt"`

	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type VectorConfig struct {
	Backend    string `mapstructure:"backend"` // "qdrant" or "memory"
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type GraphConfig struct {
	Backend  string `mapstructure:"backend"` // "neo4j" or "memory"
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// CacheConfig configures the Redis-backed embedding cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addrs    []string      `mapstructure:"addrs"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RetrievalConfig struct {
	VectorK       int           `mapstructure:"vector_k"`
	GraphK        int           `mapstructure:"graph_k"`
	MaxPassages   int           `mapstructure:"max_passages"`
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
}

type IngestConfig struct {
	CorpusDir    string        `mapstructure:"corpus_dir"`
	PapersDir    string        `mapstructure:"papers_dir"`
	LedgerPath   string        `mapstructure:"ledger_path"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// SecretsConfig selects where missing credentials are read from.
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"` // "env", "file" or "vault"
	File       string `mapstructure:"file"`
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultMount string `mapstructure:"vault_mount"`
	VaultPath  string `mapstructure:"vault_path"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.model_family", "qwen")
	v.SetDefault("llm.system_prompt", "You are a helpful assistant summarizing autism research.")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_minute", 60)

	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.dimension", 384)

	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "research_papers")

	v.SetDefault("graph.backend", "neo4j")
	v.SetDefault("graph.uri", "neo4j://127.0.0.1:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("graph.password", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addrs", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("cache.password", "")

	v.SetDefault("retrieval.vector_k", 2)
	v.SetDefault("retrieval.graph_k", 2)
	v.SetDefault("retrieval.max_passages", 4)
	v.SetDefault("retrieval.source_timeout", 10*time.Second)

	v.SetDefault("ingest.corpus_dir", "./data/processed_json")
	v.SetDefault("ingest.papers_dir", "./data/papers")
	v.SetDefault("ingest.ledger_path", "./data/ledger.db")
	v.SetDefault("ingest.write_timeout", 30*time.Second)

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "hybridrag-ingest")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.env", "dev")
	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.endpoint", "")

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.file", "")
	v.SetDefault("secrets.vault_addr", "")
	v.SetDefault("secrets.vault_token", "")
	v.SetDefault("secrets.vault_mount", "secret")
	v.SetDefault("secrets.vault_path", "hybridrag")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Model == "" && c.LLM.ModelFamily == "" {
		warnings = append(warnings, "neither llm.model nor llm.model_family is set; answering will be unavailable")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	if c.Graph.Backend == "neo4j" && c.Graph.Password == "" {
		warnings = append(warnings, "graph backend 'neo4j' is configured but password is empty")
	}

	if c.Retrieval.MaxPassages < c.Retrieval.VectorK {
		warnings = append(warnings, fmt.Sprintf("retrieval.max_passages %d is smaller than vector_k %d; graph passages will never fit",
			c.Retrieval.MaxPassages, c.Retrieval.VectorK))
	}

	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		warnings = append(warnings, "embedding cache is enabled but cache.addrs is empty")
	}

	return warnings
}

// Load reads configuration from file and environment. An empty path, or a
// path that does not exist, yields defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("HYBRIDRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
