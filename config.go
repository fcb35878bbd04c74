package termai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	defaults "github.com/termai/termai/default"
	"gopkg.in/yaml.v3"
)

// Config represents the user's termai configuration. It is loaded once at
// startup and passed by parameter; nothing mutates it afterwards.
type Config struct {
	APIProvider   string         `yaml:"api_provider"`
	Anthropic     ProviderConfig `yaml:"anthropic"`
	OpenAI        ProviderConfig `yaml:"openai"`
	AutoFixErrors bool           `yaml:"auto_fix_errors"`
	DebugMode     bool           `yaml:"debug_mode"`

	// RequestTimeoutSeconds bounds the single HTTP request to the provider.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// SkipExitCodes lists exit codes the automatic hook ignores. The default
	// covers 0 (success) and 130 (SIGINT under the usual shell convention).
	SkipExitCodes []int `yaml:"skip_exit_codes"`

	Context ContextConfig `yaml:"context"`
}

// ProviderConfig holds per-provider API settings.
type ProviderConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ContextConfig controls optional fix-mode prompt enrichment.
type ContextConfig struct {
	// MaxHistoryCommands caps how much shell history is read and indexed.
	MaxHistoryCommands int `yaml:"max_history_commands"`
	// NoRawHistory suppresses recent raw history in prompts; only
	// semantically relevant commands are included (requires embedding).
	NoRawHistory bool `yaml:"no_raw_history"`
	// Workdir enables directory context (file listing, manifests, git state)
	// in fix prompts.
	Workdir   bool            `yaml:"workdir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig holds settings for the embedding API used by the
// relevant-history index. Embedding is disabled until both base_url and
// api_key are set.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Provider identifiers recognized by the dispatch in package provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ConfigDir returns the config directory path.
// Resolution order: $TERMAI_CONFIG_DIR > $XDG_CONFIG_HOME/termai > ~/.config/termai
func ConfigDir() string {
	if dir := os.Getenv("TERMAI_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "termai")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "termai-config")
	}
	return filepath.Join(home, ".config", "termai")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// PromptPath returns the path of the optional system prompt override.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// CachePath returns the path of the embedding index cache.
// Resolution order: $XDG_CACHE_HOME/termai > ~/.cache/termai
func CachePath() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "termai", "embeddings.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "termai-cache", "embeddings.json")
	}
	return filepath.Join(home, ".cache", "termai", "embeddings.json")
}

// DefaultConfig returns the default configuration from the embedded
// default_config.yaml.
func DefaultConfig() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaults.DefaultConfigYAML, &cfg); err != nil {
		panic("termai: invalid embedded default_config.yaml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
// A file that exists but cannot be read or parsed is an unrecoverable
// configuration error.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	// Decoding over the defaults keeps every field the file does not set,
	// including booleans whose default is true.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ResolveProvider returns the active provider identifier.
// Priority: $TERMAI_API_PROVIDER env > config value.
func ResolveProvider(cfg *Config) string {
	if p := os.Getenv("TERMAI_API_PROVIDER"); p != "" {
		return p
	}
	if cfg != nil {
		return cfg.APIProvider
	}
	return ""
}

// ResolveAPIKey returns the API key for the given provider.
// Priority: provider-specific env ($ANTHROPIC_API_KEY, $OPENAI_API_KEY) >
// config value.
func ResolveAPIKey(cfg *Config, provider string) string {
	switch provider {
	case ProviderAnthropic:
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key
		}
		if cfg != nil {
			return cfg.Anthropic.APIKey
		}
	case ProviderOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
		if cfg != nil {
			return cfg.OpenAI.APIKey
		}
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured
// for the embedding API.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Context.Embedding.BaseURL != "" && cfg.Context.Embedding.APIKey != ""
}

// RequestTimeout returns the configured HTTP request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c == nil || c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShouldSkipExitCode reports whether the automatic hook ignores this exit
// code. A nil list falls back to {0, 130}.
func (c *Config) ShouldSkipExitCode(code int) bool {
	codes := []int{0, 130}
	if c != nil && c.SkipExitCodes != nil {
		codes = c.SkipExitCodes
	}
	for _, s := range codes {
		if s == code {
			return true
		}
	}
	return false
}

// ValidateProviderKey checks that the selected provider has a usable API key.
// Only the implemented provider requires a key; the openai placeholder and
// unknown providers are handled by the dispatch and reported as text instead.
func ValidateProviderKey(cfg *Config) error {
	provider := ResolveProvider(cfg)
	if provider != ProviderAnthropic {
		return nil
	}
	key := ResolveAPIKey(cfg, provider)
	if key == "" {
		return fmt.Errorf("anthropic API key missing: set anthropic.api_key in %s or export ANTHROPIC_API_KEY", ConfigPath())
	}
	if strings.HasPrefix(key, "YOUR_") {
		return fmt.Errorf("anthropic API key in %s looks like a placeholder; replace it with a real key", ConfigPath())
	}
	return nil
}
