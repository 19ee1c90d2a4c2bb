// Package config provides agentprobe configuration.
// Configuration is layered: built-in defaults, an optional YAML file,
// then environment variable overrides. API keys come only from the
// environment and are never written to the YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all agentprobe configuration.
type Config struct {
	// Chat endpoint of the real-estate agent under test.
	Chat ChatConfig `yaml:"chat"`

	// Backend telemetry (pipeline log) endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Reasoning model used for persona replies and log reconciliation.
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Embedding model used by the question deduplicator.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Probe run budgets and opening messages.
	Probe ProbeConfig `yaml:"probe"`

	// HTTP front door.
	Server ServerConfig `yaml:"server"`

	// Optional sqlite archive of finished run reports.
	Archive ArchiveConfig `yaml:"archive"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ChatConfig configures the streaming chat transport.
type ChatConfig struct {
	APIURL     string `yaml:"api_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	RetryCount int    `yaml:"retry_count"`
}

// TelemetryConfig configures the backend log reader.
type TelemetryConfig struct {
	APIURL     string `yaml:"api_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	RetryCount int    `yaml:"retry_count"`
	LogsLimit  int    `yaml:"logs_limit"`
}

// ReasonerConfig configures the OpenAI-compatible reasoning client.
type ReasonerConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"-"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EmbeddingConfig configures the GenAI embedding engine.
type EmbeddingConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// ProbeConfig configures one probe run.
type ProbeConfig struct {
	UserID          string  `yaml:"user_id"`
	MaxTurns        int     `yaml:"max_turns"`
	MaxTotalSeconds int     `yaml:"max_total_seconds"`
	InitialUserMsg  string  `yaml:"initial_user_message"`
	InitialAgentMsg string  `yaml:"initial_agent_message"`
	DedupThreshold  float64 `yaml:"dedup_threshold"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ArchiveConfig configures the run report archive.
// An empty path disables archiving.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			TimeoutSec: 50,
			RetryCount: 2,
		},
		Telemetry: TelemetryConfig{
			TimeoutSec: 50,
			RetryCount: 2,
			LogsLimit:  50,
		},
		Reasoner: ReasonerConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o",
			TimeoutSec: 60,
		},
		Embedding: EmbeddingConfig{
			Model: "gemini-embedding-001",
		},
		Probe: ProbeConfig{
			MaxTurns:        40,
			MaxTotalSeconds: 2000,
			InitialUserMsg:  "hello i need to buy a new property for stability",
			InitialAgentMsg: "what's happening in your life right now that's making you consider buying",
			DedupThreshold:  0.87,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file and the environment.
// Path may be empty, in which case only defaults and env overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Probe.UserID == "" {
		cfg.Probe.UserID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the loaded config.
func (c *Config) applyEnvOverrides() {
	c.Chat.APIURL = getEnv("CHAT_API_URL", c.Chat.APIURL)
	c.Telemetry.APIURL = getEnv("LOGS_API_URL", c.Telemetry.APIURL)
	c.Telemetry.LogsLimit = getEnvInt("LOGS_LIMIT", c.Telemetry.LogsLimit)

	c.Reasoner.APIKey = getEnv("OPENAI_API_KEY", c.Reasoner.APIKey)
	c.Reasoner.BaseURL = getEnv("OPENAI_BASE_URL", c.Reasoner.BaseURL)
	c.Reasoner.Model = getEnv("OPENAI_MODEL", c.Reasoner.Model)

	// GEMINI_API_KEY wins over GOOGLE_API_KEY when both are set.
	c.Embedding.APIKey = getEnv("GOOGLE_API_KEY", c.Embedding.APIKey)
	c.Embedding.APIKey = getEnv("GEMINI_API_KEY", c.Embedding.APIKey)

	c.Probe.MaxTurns = getEnvInt("MAX_TURNS", c.Probe.MaxTurns)
	c.Probe.MaxTotalSeconds = getEnvInt("MAX_TOTAL_SECONDS", c.Probe.MaxTotalSeconds)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Archive.Path = getEnv("ARCHIVE_PATH", c.Archive.Path)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate checks that the configuration is internally consistent.
// Credentials are checked later, at client construction, so that
// stub-backed test wiring does not require keys.
func (c *Config) Validate() error {
	if c.Chat.TimeoutSec <= 0 {
		return fmt.Errorf("chat.timeout_sec must be > 0")
	}
	if c.Chat.RetryCount <= 0 {
		return fmt.Errorf("chat.retry_count must be > 0")
	}
	if c.Telemetry.LogsLimit <= 0 {
		return fmt.Errorf("telemetry.logs_limit must be > 0")
	}
	if c.Probe.MaxTurns <= 0 {
		return fmt.Errorf("probe.max_turns must be > 0")
	}
	if c.Probe.MaxTotalSeconds <= 0 {
		return fmt.Errorf("probe.max_total_seconds must be > 0")
	}
	if c.Probe.DedupThreshold <= 0 || c.Probe.DedupThreshold > 1 {
		return fmt.Errorf("probe.dedup_threshold must be in (0, 1]")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
