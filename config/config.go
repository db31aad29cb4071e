// Package config loads devsquad configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DEVSQUAD_"

// Config is the full devsquad configuration tree.
type Config struct {
	Model        ModelConfig        `koanf:"model"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Sandbox      SandboxConfig      `koanf:"sandbox"`
	Memory       MemoryConfig       `koanf:"memory"`
	Logging      LoggingConfig      `koanf:"logging"`
	// PersonasFile points at a YAML file overriding the built-in personas.
	PersonasFile string `koanf:"personas_file"`
}

// ModelConfig selects and tunes the reasoning backend.
type ModelConfig struct {
	// Provider is one of "openai", "anthropic" or "mock".
	Provider    string  `koanf:"provider"`
	Name        string  `koanf:"name"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	// MaxRetries bounds transient-error retries per model call.
	MaxRetries int `koanf:"max_retries"`
}

// OrchestratorConfig tunes the turn loop.
type OrchestratorConfig struct {
	MaxAttempts int    `koanf:"max_attempts"`
	MaxTurns    int    `koanf:"max_turns"`
	AuditFile   string `koanf:"audit_file"`
}

// SandboxConfig configures code execution.
type SandboxConfig struct {
	// Backend is "docker" or "process".
	Backend        string        `koanf:"backend"`
	Image          string        `koanf:"image"`
	WorkDir        string        `koanf:"work_dir"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxOutputBytes int           `koanf:"max_output_bytes"`
}

// MemoryConfig configures the knowledge store.
type MemoryConfig struct {
	// Backend is "chromem" or "keyword".
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	// DocsDir, when set, is indexed into the store at startup.
	DocsDir        string  `koanf:"docs_dir"`
	TopK           int     `koanf:"top_k"`
	ScoreThreshold float64 `koanf:"score_threshold"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads the YAML file at path (skipped when empty or missing) and then
// overlays DEVSQUAD_* environment variables. DEVSQUAD_MODEL_PROVIDER maps to
// model.provider, DEVSQUAD_SANDBOX_WORK_DIR to sandbox.work_dir, and so on:
// the first underscore after the prefix separates section from field.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// The only top-level scalar; everything else is section_field.
		if lower == "personas_file" {
			return lower
		}
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = "openai"
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.7
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Model.MaxRetries == 0 {
		c.Model.MaxRetries = 3
	}

	if c.Orchestrator.MaxAttempts == 0 {
		c.Orchestrator.MaxAttempts = 3
	}
	if c.Orchestrator.MaxTurns == 0 {
		c.Orchestrator.MaxTurns = 20
	}

	if c.Sandbox.Backend == "" {
		c.Sandbox.Backend = "docker"
	}
	if c.Sandbox.Image == "" {
		c.Sandbox.Image = "python:3.12-slim"
	}
	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = 60 * time.Second
	}
	if c.Sandbox.MaxOutputBytes == 0 {
		c.Sandbox.MaxOutputBytes = 64 * 1024
	}

	if c.Memory.Backend == "" {
		c.Memory.Backend = "chromem"
	}
	if c.Memory.TopK == 0 {
		c.Memory.TopK = 3
	}
	if c.Memory.ScoreThreshold == 0 {
		c.Memory.ScoreThreshold = 0.4
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects structurally invalid configurations.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.Sandbox.Backend {
	case "docker", "process":
	default:
		return fmt.Errorf("unknown sandbox backend %q", c.Sandbox.Backend)
	}
	switch c.Memory.Backend {
	case "chromem", "keyword":
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	if c.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator.max_attempts must be at least 1, got %d", c.Orchestrator.MaxAttempts)
	}
	if c.Orchestrator.MaxTurns < 1 {
		return fmt.Errorf("orchestrator.max_turns must be at least 1, got %d", c.Orchestrator.MaxTurns)
	}
	if c.Sandbox.Timeout < 0 {
		return fmt.Errorf("sandbox.timeout must not be negative")
	}
	if c.Memory.ScoreThreshold < 0 || c.Memory.ScoreThreshold > 1 {
		return fmt.Errorf("memory.score_threshold must be within [0,1], got %v", c.Memory.ScoreThreshold)
	}
	return nil
}
