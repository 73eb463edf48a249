package model

import (
	"fmt"
	"time"
)

// Config is the complete pipeline configuration. Values are resolved in
// the usual hierarchy: CLI flags, FEEDFORWARD_* environment variables,
// config file, then these defaults.
type Config struct {
	Grouping    GroupingConfig    `yaml:"grouping" mapstructure:"grouping"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// GroupingConfig holds the quality-gate thresholds.
type GroupingConfig struct {
	// MinGroupSize is the minimum conversations needed to justify a ticket.
	MinGroupSize int `yaml:"min_group_size" mapstructure:"min_group_size"`

	// ConfidenceThreshold is the minimum coherence score a group must
	// reach to pass the quality gate.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`

	// ScrutinyThreshold flags groups below it for reviewer attention.
	// It never auto-approves or auto-rejects anything.
	ScrutinyThreshold float64 `yaml:"scrutiny_threshold" mapstructure:"scrutiny_threshold"`

	// AutoRejectThreshold discards groups below it, but only for the
	// designated catch-all signature.
	AutoRejectThreshold float64 `yaml:"auto_reject_threshold" mapstructure:"auto_reject_threshold"`

	// CatchAllSignature is the extractor's "could not classify" bucket.
	CatchAllSignature string `yaml:"catch_all_signature" mapstructure:"catch_all_signature"`
}

// LLMConfig configures the extraction and embedding providers.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ""
	Model          string `yaml:"model" mapstructure:"model"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CacheConfig configures the layered embedding cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig locates the durable run state: orphan pools, signature
// equivalences, and the ticket database.
type StoreConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TicketDB string `yaml:"ticket_db" mapstructure:"ticket_db"`
}

// NotifyConfig configures optional Slack reviewer notifications.
type NotifyConfig struct {
	SlackToken   string `yaml:"-" mapstructure:"slack_token"`
	SlackChannel string `yaml:"slack_channel" mapstructure:"slack_channel"`
}

// ConcurrencyConfig bounds the pipeline's external fan-out.
type ConcurrencyConfig struct {
	ScoringWorkers int     `yaml:"scoring_workers" mapstructure:"scoring_workers"`
	EmbedRPS       float64 `yaml:"embed_rps" mapstructure:"embed_rps"`
	EmbedBurst     int     `yaml:"embed_burst" mapstructure:"embed_burst"`
}

// OutputConfig controls CLI output behavior.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Grouping: GroupingConfig{
			MinGroupSize:        3,
			ConfidenceThreshold: 50.0,
			ScrutinyThreshold:   45.0,
			AutoRejectThreshold: 20.0,
			CatchAllSignature:   "unclassified",
		},
		LLM: LLMConfig{
			Provider:       "",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        30,
			MaxTokens:      1024,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultStateDir("embeddings"),
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Dir:      defaultStateDir("state"),
			TicketDB: defaultStateDir("tickets.db"),
		},
		Concurrency: ConcurrencyConfig{
			ScoringWorkers: 4,
			EmbedRPS:       5,
			EmbedBurst:     10,
		},
	}
}

// Validate fails fast on configuration that would corrupt a run. Called
// at startup, before any record is processed.
func (c *Config) Validate() error {
	if c.Grouping.MinGroupSize < 1 {
		return fmt.Errorf("min_group_size must be >= 1 (got %d)", c.Grouping.MinGroupSize)
	}
	if c.Grouping.ConfidenceThreshold < 0 || c.Grouping.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence_threshold must be in [0, 100] (got %.1f)", c.Grouping.ConfidenceThreshold)
	}
	if c.Grouping.ScrutinyThreshold < 0 || c.Grouping.ScrutinyThreshold > 100 {
		return fmt.Errorf("scrutiny_threshold must be in [0, 100] (got %.1f)", c.Grouping.ScrutinyThreshold)
	}
	if c.Grouping.AutoRejectThreshold < 0 || c.Grouping.AutoRejectThreshold > c.Grouping.ConfidenceThreshold {
		return fmt.Errorf("auto_reject_threshold must be in [0, confidence_threshold] (got %.1f)", c.Grouping.AutoRejectThreshold)
	}
	if c.Concurrency.ScoringWorkers < 1 {
		return fmt.Errorf("scoring_workers must be >= 1 (got %d)", c.Concurrency.ScoringWorkers)
	}
	if c.Concurrency.EmbedRPS <= 0 {
		return fmt.Errorf("embed_rps must be > 0 (got %.1f)", c.Concurrency.EmbedRPS)
	}
	return nil
}

func defaultStateDir(name string) string {
	return "./.feedforward/" + name
}
