// Package config loads the hub configuration from a YAML file with
// environment overrides for credentials and endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete hub configuration.
type Config struct {
	DefaultAgent string `yaml:"default_agent"`
	DefaultModel string `yaml:"default_model"`
	// StepBudget is the per-turn step budget.
	StepBudget         int    `yaml:"step_budget"`
	ModelTimeout       string `yaml:"model_timeout"`
	MaxParallelTools   int    `yaml:"max_parallel_tools"`
	MaxConcurrentTurns int    `yaml:"max_concurrent_turns"`

	Providers ProvidersConfig `yaml:"providers"`
	Safety    SafetyConfig    `yaml:"safety"`
	Storage   StorageConfig   `yaml:"storage"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProvidersConfig holds credentials and endpoints per model provider. A
// provider without credentials contributes no models.
type ProvidersConfig struct {
	OpenAI    OpenAIConfig `yaml:"openai"`
	Azure     AzureConfig  `yaml:"azure"`
	Groq      OpenAIConfig `yaml:"groq"`
	Ollama    OllamaConfig `yaml:"ollama"`
	Anthropic APIKeyConfig `yaml:"anthropic"`
	Gemini    APIKeyConfig `yaml:"gemini"`
}

// OpenAIConfig configures an OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig configures Azure OpenAI. Deployments maps model ids
// (azure-gpt-4o, azure-gpt-4o-mini) to deployment names.
type AzureConfig struct {
	APIKey      string            `yaml:"api_key"`
	Endpoint    string            `yaml:"endpoint"`
	APIVersion  string            `yaml:"api_version"`
	Deployments map[string]string `yaml:"deployments"`
}

// OllamaConfig configures a local Ollama server. The model is only offered
// when Model is set.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// APIKeyConfig configures a provider that only needs a key.
type APIKeyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SafetyConfig configures the Llama Guard classifier.
type SafetyConfig struct {
	// Enabled turns classification on when the guard model is available.
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// StorageConfig selects the thread store.
type StorageConfig struct {
	// ThreadsDB is a SQLite file for durable threads. Empty keeps threads in
	// memory.
	ThreadsDB string `yaml:"threads_db"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	// SQLitePath is the database behind the sql agent (Chinook).
	SQLitePath string `yaml:"sqlite_path"`
	// KnowledgeDir holds the text and markdown files behind the
	// rag-assistant.
	KnowledgeDir  string `yaml:"knowledge_dir"`
	SearchResults int    `yaml:"search_results"`
	HTTPTimeout   string `yaml:"http_timeout"`
	UserAgent     string `yaml:"user_agent"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultAgent:       "chatbot",
		DefaultModel:       "gpt-4o-mini",
		StepBudget:         10,
		ModelTimeout:       "120s",
		MaxParallelTools:   4,
		MaxConcurrentTurns: 10,
		Providers: ProvidersConfig{
			Azure: AzureConfig{
				APIVersion: "2024-10-21",
				Deployments: map[string]string{
					"azure-gpt-4o":      "gpt-4o",
					"azure-gpt-4o-mini": "gpt-4o-mini",
				},
			},
			Groq:   OpenAIConfig{BaseURL: "https://api.groq.com/openai/v1"},
			Ollama: OllamaConfig{BaseURL: "http://localhost:11434/v1"},
		},
		Safety: SafetyConfig{
			Enabled: true,
			Model:   "meta-llama/llama-guard-4-12b",
			Timeout: "30s",
		},
		Tools: ToolsConfig{
			SearchResults: 5,
			HTTPTimeout:   "30s",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Providers.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Providers.Azure.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&c.Providers.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Providers.Azure.APIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&c.Providers.Groq.APIKey, "GROQ_API_KEY")
	setString(&c.Providers.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.Providers.Ollama.Model, "OLLAMA_MODEL")
	setString(&c.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")

	setString(&c.DefaultModel, "DEFAULT_MODEL")
	setString(&c.Storage.ThreadsDB, "AGENTHUB_THREADS_DB")
	setString(&c.Tools.SQLitePath, "CHINOOK_PATH")
	setString(&c.Tools.KnowledgeDir, "AGENTHUB_KNOWLEDGE_DIR")
	setString(&c.Logging.Level, "AGENTHUB_LOG_LEVEL")

	if v := os.Getenv("AGENTHUB_STEP_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StepBudget = n
		}
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StepBudget <= 0 {
		return fmt.Errorf("invalid step_budget %d: must be positive", c.StepBudget)
	}
	if c.MaxParallelTools < 0 {
		return fmt.Errorf("invalid max_parallel_tools %d", c.MaxParallelTools)
	}
	if c.MaxConcurrentTurns < 0 {
		return fmt.Errorf("invalid max_concurrent_turns %d", c.MaxConcurrentTurns)
	}
	for name, v := range map[string]string{
		"model_timeout":      c.ModelTimeout,
		"safety.timeout":     c.Safety.Timeout,
		"tools.http_timeout": c.Tools.HTTPTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	return nil
}

// GetModelTimeout returns the model timeout; zero disables it.
func (c *Config) GetModelTimeout() time.Duration { return parseDuration(c.ModelTimeout, 0) }

// GetSafetyTimeout returns the classification timeout.
func (c *Config) GetSafetyTimeout() time.Duration { return parseDuration(c.Safety.Timeout, 30*time.Second) }

// GetHTTPTimeout returns the timeout of the HTTP based tools.
func (c *Config) GetHTTPTimeout() time.Duration { return parseDuration(c.Tools.HTTPTimeout, 30*time.Second) }

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
