package model

import (
	"fmt"
	"strings"
)

// Config is the complete engine configuration
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Chunking   ChunkingConfig   `yaml:"chunking" mapstructure:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// InputConfig controls how documents are fetched
type InputConfig struct {
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"`     // seconds, http(s) sources
	MaxBytes   int64  `yaml:"max_bytes" mapstructure:"max_bytes"` // Largest accepted document
	UserAgent  string `yaml:"user_agent" mapstructure:"user_agent"`
	S3Region   string `yaml:"s3_region,omitempty" mapstructure:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty" mapstructure:"s3_endpoint"` // S3-compatible stores
}

// ChunkingConfig bounds page segments
type ChunkingConfig struct {
	MaxSize int `yaml:"max_size" mapstructure:"max_size"` // Characters per chunk
	Overlap int `yaml:"overlap" mapstructure:"overlap"`   // Characters shared by consecutive chunks
}

// EmbeddingConfig selects and tunes the embedding client
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // hashing, openai, ollama, gemini
	Model             string  `yaml:"model,omitempty" mapstructure:"model"`
	Dimension         int     `yaml:"dimension" mapstructure:"dimension"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
}

// IndexConfig selects the vector index backend
type IndexConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"`       // memory, sqlite, qdrant
	Collection string `yaml:"collection" mapstructure:"collection"` // Base collection name
	Path       string `yaml:"path,omitempty" mapstructure:"path"`   // sqlite database file
	URL        string `yaml:"url,omitempty" mapstructure:"url"`     // qdrant base URL
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LLMConfig configures the completion model client
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float32 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	BreakerFailures   uint32  `yaml:"breaker_failures" mapstructure:"breaker_failures"` // Consecutive failures before opening
	BreakerCooldown   int     `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"` // seconds
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ExtractionConfig tunes the field resolution loop
type ExtractionConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	DefaultK    int `yaml:"default_k" mapstructure:"default_k"`
	GroupedK    int `yaml:"grouped_k" mapstructure:"grouped_k"`
	Workers     int `yaml:"workers" mapstructure:"workers"` // 1 resolves fields sequentially
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir      string `yaml:"dir,omitempty" mapstructure:"dir"` // Empty keeps the cache in memory only
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// OutputConfig controls rendering and persistence of results
type OutputConfig struct {
	Format    string `yaml:"format" mapstructure:"format"` // json, csv, xlsx
	Path      string `yaml:"path,omitempty" mapstructure:"path"`
	StorePath string `yaml:"store_path,omitempty" mapstructure:"store_path"` // sqlite result store, empty disables
	Verbose   bool   `yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Timeout:   30,
			MaxBytes:  50 << 20,
			UserAgent: "contractrag/1.0",
		},
		Chunking: ChunkingConfig{
			MaxSize: 2048,
			Overlap: 25,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hashing",
			Dimension: 512,
			BatchSize: 64,
			Timeout:   30,
		},
		Index: IndexConfig{
			Backend:    "memory",
			Collection: "contract_collection",
			Timeout:    15,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Timeout:           60,
			MaxTokens:         2048,
			RequestsPerSecond: 5,
			Burst:             5,
			BreakerFailures:   5,
			BreakerCooldown:   30,
		},
		Extraction: ExtractionConfig{
			MaxAttempts: 3,
			DefaultK:    DefaultTopK,
			GroupedK:    GroupedTopK,
			Workers:     1,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTLHours: 24,
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

// Validate checks values the engine cannot run without
func (c *Config) Validate() error {
	if c.Input.MaxBytes <= 0 {
		return &ConfigurationError{Reason: "input.max_bytes must be positive"}
	}
	if c.Chunking.MaxSize <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("chunking.max_size must be positive, got %d", c.Chunking.MaxSize)}
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxSize {
		return &ConfigurationError{Reason: fmt.Sprintf("chunking.overlap must be in [0, %d), got %d", c.Chunking.MaxSize, c.Chunking.Overlap)}
	}
	if c.Embedding.Dimension <= 0 {
		return &ConfigurationError{Reason: "embedding.dimension must be positive"}
	}
	if strings.TrimSpace(c.Index.Collection) == "" {
		return &ConfigurationError{Reason: "index.collection is empty"}
	}
	if c.Extraction.MaxAttempts <= 0 {
		return &ConfigurationError{Reason: "extraction.max_attempts must be positive"}
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "json", "csv", "xlsx":
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown output format %q (supported: json, csv, xlsx)", c.Output.Format)}
	}
	return nil
}
