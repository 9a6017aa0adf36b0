package oracle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFile holds the oracle configuration, relative to the repo
// root. It is re-read on every call so edits take effect without a
// restart.
const ConfigFile = ".operon/llm_config.json"

// Config selects and tunes the model backing the oracle.
type Config struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutS    int     `json:"timeout_s"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   4096,
		TimeoutS:    120,
	}
}

// LoadConfig reads the config file, filling gaps from defaults and
// the OPENAI_API_KEY environment variable.
func LoadConfig(repoRoot string) Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(ConfigFile)))
	if err == nil {
		var loaded Config
		if json.Unmarshal(data, &loaded) == nil {
			merge(&cfg, loaded)
		}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	return cfg
}

func merge(dst *Config, src Config) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Temperature > 0 {
		dst.Temperature = src.Temperature
	}
	if src.MaxTokens > 0 {
		dst.MaxTokens = src.MaxTokens
	}
	if src.TimeoutS > 0 {
		dst.TimeoutS = src.TimeoutS
	}
}
