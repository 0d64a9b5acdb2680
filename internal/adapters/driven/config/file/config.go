// Package file provides TOML file-backed configuration.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the tool configuration, stored as TOML in the sitesearch
// config directory.
type Config struct {
	// Corpus selects where the search corpus comes from. Path and URL
	// are mutually exclusive; Path wins when both are set.
	Corpus CorpusConfig `toml:"corpus"`

	// Ollama configures the optional local model backend. Semantic
	// search and the assistant are disabled without it.
	Ollama OllamaConfig `toml:"ollama"`

	// Assistant tunes the question answering pipeline.
	Assistant AssistantConfig `toml:"assistant"`
}

// CorpusConfig selects the corpus source.
type CorpusConfig struct {
	// Path is a local search corpus JSON file.
	Path string `toml:"path"`

	// URL is a remote search corpus endpoint, typically the deployed
	// site's /search-data.json.
	URL string `toml:"url"`

	// Watch reloads the index when a local corpus file changes.
	Watch bool `toml:"watch"`
}

// OllamaConfig configures the local model backend.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string `toml:"base_url"`

	// EmbeddingModel generates query embeddings (default: all-minilm).
	// Its dimensions must match the corpus embedding width.
	EmbeddingModel string `toml:"embedding_model"`

	// ChatModel answers assistant questions (default: qwen2.5:3b).
	ChatModel string `toml:"chat_model"`
}

// AssistantConfig tunes the question answering pipeline. Zero values
// use the built-in defaults.
type AssistantConfig struct {
	// TopK is the number of documents retrieved per question.
	TopK int `toml:"top_k"`

	// MinSelections is the smallest acceptable relevance filter outcome.
	MinSelections int `toml:"min_selections"`

	// ExcerptLimit truncates each document excerpt in the prompt.
	ExcerptLimit int `toml:"excerpt_limit"`
}

// DefaultPath returns the default config file location,
// ~/.sitesearch/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sitesearch", "config.toml"), nil
}

// Load reads the config file at path, or the default location when
// path is empty. A missing file yields the zero Config without error so
// first runs work without any setup.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, fmt.Errorf("resolve config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, or the default location when path is
// empty, creating the directory as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Write with restricted permissions
	return os.WriteFile(path, data, 0600)
}
