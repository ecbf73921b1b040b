// Package config loads the agent core's flat YAML option set.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for agentcore. It is a flat
// option set by design: there is exactly one Agent Loop, one Compactor, one
// Scheduler per process, so there is no need for the nested per-channel /
// per-agent structure a multi-tenant gateway would carry.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig configures the admin HTTP surface.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// LLMConfig selects and configures the LLM Gateway's backing provider.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // "anthropic" | "openai"
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model"`
}

// AgentConfig is the Agent Loop and Compactor's option set, per §6.
type AgentConfig struct {
	MaxToolIterations   int     `yaml:"max_tool_iterations"`
	MaxContextMessages  int     `yaml:"max_context_messages"`
	MaxContextTokens    int     `yaml:"max_context_tokens"`
	CompactionThreshold float64 `yaml:"compaction_threshold"`
	KeepRecentMessages  int     `yaml:"keep_recent_messages"`
	CompactionEnabled   bool    `yaml:"compaction_enabled"`
	ToolDefaultRisk     string  `yaml:"tool_default_risk"`
}

// SessionConfig is the Session Manager's option set.
type SessionConfig struct {
	IdleTimeout  time.Duration `yaml:"session_idle_timeout"`
	CacheCapacity int          `yaml:"cache_capacity"`
}

// RateLimitConfig backs the per-user token bucket at the transport boundary.
type RateLimitConfig struct {
	PerMinute int  `yaml:"rate_limit_per_minute"`
	Enabled   *bool `yaml:"enabled"`
}

// ApprovalConfig is the Exec-Approval Gate's option set.
type ApprovalConfig struct {
	Required bool          `yaml:"approval_required"`
	Timeout  time.Duration `yaml:"approval_timeout"`
}

// SchedulerConfig is the Scheduler's option set.
type SchedulerConfig struct {
	TickInterval   time.Duration `yaml:"scheduler_tick"`
	TasksFilePath  string        `yaml:"tasks_file_path"`
}

// StorageConfig points at the long-term SQLite store.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "text"
}

// TracingConfig configures the in-process OpenTelemetry tracer. There is no
// collector endpoint field here: the core has none to export to, so the
// tracer only ever builds a plain in-process provider.
type TracingConfig struct {
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
}

// Load reads, expands env vars in, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the spec's stated defaults with no provider configured.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}

	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = 10
	}
	if cfg.Agent.MaxContextMessages == 0 {
		cfg.Agent.MaxContextMessages = 50
	}
	if cfg.Agent.MaxContextTokens == 0 {
		cfg.Agent.MaxContextTokens = 100000
	}
	if cfg.Agent.CompactionThreshold == 0 {
		cfg.Agent.CompactionThreshold = 0.7
	}
	if cfg.Agent.KeepRecentMessages == 0 {
		cfg.Agent.KeepRecentMessages = 10
	}
	if cfg.Agent.ToolDefaultRisk == "" {
		cfg.Agent.ToolDefaultRisk = "moderate"
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 24 * time.Hour
	}
	if cfg.Session.CacheCapacity == 0 {
		cfg.Session.CacheCapacity = 1000
	}

	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 30
	}
	if cfg.RateLimit.Enabled == nil {
		on := true
		cfg.RateLimit.Enabled = &on
	}

	if cfg.Approval.Timeout == 0 {
		cfg.Approval.Timeout = 5 * time.Minute
	}

	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = 30 * time.Second
	}
	if cfg.Scheduler.TasksFilePath == "" {
		cfg.Scheduler.TasksFilePath = "agentcore-tasks.json"
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "agentcore.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = "development"
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("config: unsupported llm.provider %q", cfg.LLM.Provider)
	}
	if cfg.Agent.CompactionThreshold <= 0 || cfg.Agent.CompactionThreshold > 1 {
		return fmt.Errorf("config: agent.compaction_threshold must be in (0, 1]")
	}
	if cfg.Scheduler.TickInterval > 30*time.Second {
		return fmt.Errorf("config: scheduler.scheduler_tick must be <= 30s")
	}
	return nil
}
