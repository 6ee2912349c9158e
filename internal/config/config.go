// Package config loads plgn configuration from ~/.plgn/config.yaml with
// environment-variable overrides. Every bound the engines honor lives here
// so behavior is tunable without recompiling.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all plgn configuration.
type Config struct {
	// LLM configures the completion provider.
	LLM LLMConfig `yaml:"llm"`

	// Limits bounds the tool loop and closure expansion.
	Limits LimitsConfig `yaml:"limits"`

	// Cache configures the on-disk result cache.
	Cache CacheConfig `yaml:"cache"`

	// Logging controls log verbosity.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// LimitsConfig bounds loop iteration, timeouts and closure size.
type LimitsConfig struct {
	// MaxIterations caps completion/tool round-trips per loop run.
	MaxIterations int `yaml:"max_iterations"`

	// CompletionTimeout bounds a single completion-service call.
	// Exceeding it is fatal to the loop.
	CompletionTimeout time.Duration `yaml:"completion_timeout"`

	// ToolTimeout bounds a single tool handler. Exceeding it is
	// reported back into the conversation, not fatal.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// OverallTimeout bounds a whole loop run.
	OverallTimeout time.Duration `yaml:"overall_timeout"`

	// IdleTurnThreshold is how many consecutive tool-call-free
	// assistant turns trigger auto-finalization during integration.
	// A heuristic, deliberately configurable.
	IdleTurnThreshold int `yaml:"idle_turn_threshold"`

	// MaxClosureFiles caps dependency closure expansion.
	MaxClosureFiles int `yaml:"max_closure_files"`

	// MaxContextFiles is how many top-scoring files feed the
	// extraction prompt. FastContextFiles applies in fast mode.
	MaxContextFiles  int `yaml:"max_context_files"`
	FastContextFiles int `yaml:"fast_context_files"`

	// FileCharBudget truncates each prompt snippet.
	FileCharBudget     int `yaml:"file_char_budget"`
	FastFileCharBudget int `yaml:"fast_file_char_budget"`

	// MaxScanFiles bounds vulnerability scan sampling at finalize.
	MaxScanFiles int `yaml:"max_scan_files"`
}

// CacheConfig configures the on-disk cache.
type CacheConfig struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the baseline configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			BaseURL:     "",
			Temperature: 0.2,
		},
		Limits: LimitsConfig{
			MaxIterations:      24,
			CompletionTimeout:  5 * time.Minute,
			ToolTimeout:        30 * time.Second,
			OverallTimeout:     20 * time.Minute,
			IdleTurnThreshold:  2,
			MaxClosureFiles:    200,
			MaxContextFiles:    12,
			FastContextFiles:   5,
			FileCharBudget:     16000,
			FastFileCharBudget: 6000,
			MaxScanFiles:       20,
		},
		Cache: CacheConfig{
			Dir: filepath.Join(home, ".plgn", "cache"),
			TTL: time.Hour,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".plgn", "config.yaml")
}

// Load reads configuration from path, falling back to defaults for
// absent fields. A missing file is not an error: defaults plus env
// overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies environment variables on top of file values.
// Provider key precedence: GEMINI > ANTHROPIC > OPENAI, mirroring the
// order a key is most likely intentional when several are set.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if v := os.Getenv("PLGN_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PLGN_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("PLGN_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PLGN_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("PLGN_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
}
