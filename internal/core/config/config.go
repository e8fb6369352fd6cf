// Package config handles configuration loading and validation for kash.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/kash/internal/core/styles"
)

// EnvConfig names the environment variable that overrides the config path.
const EnvConfig = "KASH_CONFIG"

// Config holds the application configuration.
type Config struct {
	// Workspace is the directory used when --workspace is not given.
	Workspace string `yaml:"workspace"`
	// Params are global parameter defaults, below workspace defaults in
	// precedence.
	Params map[string]any `yaml:"params"`
	// ParamsFiles are YAML files merged into Params in order, with Params
	// applied last.
	ParamsFiles []string `yaml:"params_files"`
	// Titles overrides the output title template of an action, by name.
	Titles map[string]string `yaml:"titles"`
	// Theme names the CLI color palette.
	Theme     string          `yaml:"theme"`
	LLM       LLMConfig       `yaml:"llm"`
	Engine    EngineConfig    `yaml:"engine"`
	Selection SelectionConfig `yaml:"selection"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Fetch     FetchConfig     `yaml:"fetch"`
}

type LLMConfig struct {
	DefaultModel string `yaml:"default_model"`
	// Endpoint is an OpenAI-compatible chat completions URL.
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

type EngineConfig struct {
	// MaxParallel bounds concurrent per-item runs.
	MaxParallel int `yaml:"max_parallel"`
}

type SelectionConfig struct {
	MaxHistory int `yaml:"max_history"`
}

type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`
	// Skip lists extra top-level folders the watcher ignores.
	Skip []string `yaml:"skip"`
}

type CatalogConfig struct {
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workspace: DefaultWorkspace(),
		Theme:     styles.DefaultTheme,
		LLM: LLMConfig{
			DefaultModel: "gpt-4o-mini",
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			APIKeyEnv:    "OPENAI_API_KEY",
		},
		Engine:    EngineConfig{MaxParallel: 4},
		Selection: SelectionConfig{MaxHistory: 50},
		Catalog:   CatalogConfig{BusyTimeoutMS: 5000},
		Fetch:     FetchConfig{TimeoutSeconds: 30, UserAgent: "kash"},
	}
}

// Load reads configuration from configPath. A missing or empty path yields the
// defaults. A non-empty workspaceOverride replaces the configured workspace.
func Load(configPath, workspaceOverride string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if len(cfg.ParamsFiles) > 0 {
		fromFiles, err := loadParamsFiles(filepath.Dir(configPath), cfg.ParamsFiles)
		if err != nil {
			return nil, err
		}
		mergeMaps(fromFiles, cfg.Params)
		cfg.Params = fromFiles
	}

	if workspaceOverride != "" {
		cfg.Workspace = workspaceOverride
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Workspace == "" {
		c.Workspace = defaults.Workspace
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = defaults.LLM.DefaultModel
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = defaults.LLM.Endpoint
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaults.LLM.APIKeyEnv
	}
	if c.Engine.MaxParallel == 0 {
		c.Engine.MaxParallel = defaults.Engine.MaxParallel
	}
	if c.Selection.MaxHistory == 0 {
		c.Selection.MaxHistory = defaults.Selection.MaxHistory
	}
	if c.Catalog.BusyTimeoutMS == 0 {
		c.Catalog.BusyTimeoutMS = defaults.Catalog.BusyTimeoutMS
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaults.Fetch.TimeoutSeconds
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaults.Fetch.UserAgent
	}
}

// GlobalParams returns the configured param defaults with the LLM default
// model filled in as "model" unless set explicitly.
func (c *Config) GlobalParams() map[string]any {
	out := make(map[string]any, len(c.Params)+1)
	if c.LLM.DefaultModel != "" {
		out["model"] = c.LLM.DefaultModel
	}
	for k, v := range c.Params {
		out[k] = v
	}
	return out
}

// DefaultConfigPath is $XDG_CONFIG_HOME/kash/config.yaml, or the
// KASH_CONFIG override.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "kash", "config.yaml")
}

// DefaultWorkspace is the global workspace under $XDG_DATA_HOME.
func DefaultWorkspace() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "kash", "workspace")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}
