package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete civicner configuration
type Config struct {
	NLP          NLPConfig         `yaml:"nlp" mapstructure:"nlp"`
	Feed         FeedConfig        `yaml:"feed" mapstructure:"feed"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Links        LinkConfig        `yaml:"links" mapstructure:"links"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Sinks        SinkConfig        `yaml:"sinks" mapstructure:"sinks"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// NLPConfig controls the enrichment core
type NLPConfig struct {
	ModelDir           string `yaml:"model_dir" mapstructure:"model_dir"`                       // Empty = built-in prose model
	GazetteerFile      string `yaml:"gazetteer_file" mapstructure:"gazetteer_file"`             // Empty = built-in UK gazetteer
	SingleWordFallback bool   `yaml:"single_word_fallback" mapstructure:"single_word_fallback"` // Accept lone title-cased words as places
	ContextRadius      int    `yaml:"context_radius" mapstructure:"context_radius"`             // Bytes either side of a person span
	MinSpanLength      int    `yaml:"min_span_length" mapstructure:"min_span_length"`
}

// FeedConfig describes the Bluesky feed source
type FeedConfig struct {
	ServiceURL    string `yaml:"service_url" mapstructure:"service_url"`     // PDS used for login and authenticated reads
	PublicURL     string `yaml:"public_url" mapstructure:"public_url"`       // AppView used when unauthenticated
	TargetAccount string `yaml:"target_account" mapstructure:"target_account"`
	Username      string `yaml:"username,omitempty" mapstructure:"username"`
	Password      string `yaml:"-" mapstructure:"password"`
	Limit         int    `yaml:"limit" mapstructure:"limit"` // 0 = all posts
	PageSize      int    `yaml:"page_size" mapstructure:"page_size"`
}

// HTTPConfig holds shared HTTP client settings
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LinkConfig controls fetching of linked pages whose embed lacks metadata
type LinkConfig struct {
	FetchMissing  bool `yaml:"fetch_missing" mapstructure:"fetch_missing"`
	RespectRobots bool `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the link metadata cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig bounds request rates per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig sizes the link fetch pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls local output files
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"` // csv, json
	Verbose bool     `yaml:"verbose" mapstructure:"verbose"`
}

// SinkConfig enables the optional remote sinks
type SinkConfig struct {
	ElasticsearchAddr  string   `yaml:"elasticsearch_addr,omitempty" mapstructure:"elasticsearch_addr"`
	ElasticsearchIndex string   `yaml:"elasticsearch_index" mapstructure:"elasticsearch_index"`
	KafkaBrokers       []string `yaml:"kafka_brokers,omitempty" mapstructure:"kafka_brokers"`
	KafkaTopic         string   `yaml:"kafka_topic" mapstructure:"kafka_topic"`
}

// ServerConfig configures the HTTP extraction API
type ServerConfig struct {
	BindAddr     string `yaml:"bind_addr" mapstructure:"bind_addr"`
	MaxTextBytes int64  `yaml:"max_text_bytes" mapstructure:"max_text_bytes"`
}

// LLMConfig configures the optional run digest
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // "", openai, ollama
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		NLP: NLPConfig{
			SingleWordFallback: true,
			ContextRadius:      100,
			MinSpanLength:      3,
		},
		Feed: FeedConfig{
			ServiceURL: "https://bsky.social",
			PublicURL:  "https://public.api.bsky.app",
			PageSize:   100,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "civicner/0.1 (+https://github.com/ppiankov/civicner)",
			MaxBodyBytes: 2_000_000,
		},
		Links: LinkConfig{
			FetchMissing:  false,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".civicner-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         1,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Dir:     ".",
			Formats: []string{"csv", "json"},
		},
		Sinks: SinkConfig{
			ElasticsearchIndex: "civicner-posts",
			KafkaTopic:         "civicner_records",
		},
		Server: ServerConfig{
			BindAddr:     "127.0.0.1:8080",
			MaxTextBytes: 64 * 1024,
		},
		LLM: LLMConfig{
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      1000,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.NLP.ContextRadius < 0 {
		errs = append(errs, fmt.Errorf("nlp.context_radius cannot be negative"))
	}
	if c.NLP.MinSpanLength < 0 {
		errs = append(errs, fmt.Errorf("nlp.min_span_length cannot be negative"))
	}
	if c.Feed.Limit < 0 {
		errs = append(errs, fmt.Errorf("feed.limit cannot be negative"))
	}
	if c.Feed.PageSize <= 0 || c.Feed.PageSize > 100 {
		errs = append(errs, fmt.Errorf("feed.page_size must be between 1 and 100"))
	}
	if c.RateLimiting.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("rate_limiting.requests_per_second must be positive"))
	}
	if c.Concurrency.Workers <= 0 {
		errs = append(errs, fmt.Errorf("concurrency.workers must be positive"))
	}
	for _, f := range c.Output.Formats {
		if f != "csv" && f != "json" {
			errs = append(errs, fmt.Errorf("output.formats: unknown format %q", f))
		}
	}
	return errors.Join(errs...)
}
