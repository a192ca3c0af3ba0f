// Package config handles reading and writing the codewizard config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/esnunes/codewizard/internal/paths"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	OpenBrowser        bool   `yaml:"open_browser"`
	SessionIdleTimeout string `yaml:"session_idle_timeout"`
}

// LLMConfig configures the remote completion backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // groq, openai, gemini, cli
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`    // empty picks the provider's default
	BaseURL     string  `yaml:"base_url"` // empty picks the provider's default
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`

	// Command is the local executable used by the cli provider.
	Command string `yaml:"command"`
}

type PipelineConfig struct {
	// ContextWindow is how many trailing conversation entries are quoted in
	// follow-up prompts.
	ContextWindow int `yaml:"context_window"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"` // empty means <data dir>/events.db
}

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderCLI    = "cli"
)

const configFile = "config.yaml"

// DefaultConfig returns a Config populated with the defaults the app ships with.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:0",
			OpenBrowser:        true,
			SessionIdleTimeout: "2h",
		},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "120s",
			Command:     "claude",
		},
		Pipeline: PipelineConfig{
			ContextWindow: 3,
		},
	}
}

// DefaultPath returns the location of config.yaml in the user config directory.
func DefaultPath() (string, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write stores cfg at path, creating parent directories. It refuses to
// overwrite an existing file.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" && (c.LLM.Provider == "" || c.LLM.Provider == ProviderGroq) {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGroq
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && (c.LLM.Provider == "" || c.LLM.Provider == ProviderGemini) {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if model := os.Getenv("CODEWIZARD_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// Validate checks values that would otherwise fail late. A missing API key
// is deliberately accepted here; it is reported when the pipeline runs.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini:
	case ProviderCLI:
		if c.LLM.Command == "" {
			return fmt.Errorf("llm command is required for the cli provider")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %v out of range [0, 2]", c.LLM.Temperature)
	}
	if c.Pipeline.ContextWindow < 0 {
		return fmt.Errorf("pipeline context_window must not be negative")
	}
	if _, err := c.LLMTimeout(); err != nil {
		return err
	}
	if _, err := c.SessionIdleTimeout(); err != nil {
		return err
	}
	return nil
}

// LLMTimeout bounds a single remote completion call.
func (c *Config) LLMTimeout() (time.Duration, error) {
	return positiveDuration("llm.timeout", c.LLM.Timeout)
}

func (c *Config) SessionIdleTimeout() (time.Duration, error) {
	return positiveDuration("server.session_idle_timeout", c.Server.SessionIdleTimeout)
}

// DatabasePath resolves the event log location.
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.DatabasePath != "" {
		return c.Storage.DatabasePath, nil
	}
	dir, err := paths.DataDir()
	if err != nil {
		return "", fmt.Errorf("getting data directory: %w", err)
	}
	return filepath.Join(dir, "events.db"), nil
}

func positiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}
