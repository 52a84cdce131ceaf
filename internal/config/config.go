// Package config loads the application configuration from YAML, falling
// back to sensible defaults when no file exists.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkerConfig controls how documents are split.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// OpenAIEmbedderConfig holds settings for the remote embeddings client.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects the embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig points at the on-disk index database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// RetrievalConfig tunes candidate fetching and MMR selection.
type RetrievalConfig struct {
	TopK        int     `yaml:"top_k"`
	FetchK      int     `yaml:"fetch_k"`
	Lambda      float64 `yaml:"lambda"`
	Threshold   float64 `yaml:"threshold"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// PromptConfig bounds prompt assembly.
type PromptConfig struct {
	ChunkCharLimit int `yaml:"chunk_char_limit"`
	ContextBudget  int `yaml:"context_budget"`
	HistoryWindow  int `yaml:"history_window"`
}

// LLMConfig configures the chat completion client and sampling.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	Temperature       float32 `yaml:"temperature"`
	TopP              float32 `yaml:"top_p"`
	FrequencyPenalty  float32 `yaml:"frequency_penalty"`
	PresencePenalty   float32 `yaml:"presence_penalty"`
	BriefMaxTokens    int     `yaml:"brief_max_tokens"`
	DetailedMaxTokens int     `yaml:"detailed_max_tokens"`
}

// WatchConfig enables re-ingestion when a directory changes.
type WatchConfig struct {
	Dir string `yaml:"dir"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	LLM         LLMConfig         `yaml:"llm"`
	Watch       WatchConfig       `yaml:"watch,omitempty"`
}

// Load reads a config from the given path. A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docsense/config.yaml.
// If neither exists it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docsense", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1500
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 200
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "docsense",
		}
	}
	if cfg.VectorStore.Type == "sqlite" && cfg.VectorStore.SQLite == nil {
		cfg.VectorStore.SQLite = &SQLiteConfig{Path: "docsense.db"}
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 2 * cfg.Retrieval.TopK
	}
	if cfg.Retrieval.Lambda == 0 {
		cfg.Retrieval.Lambda = 0.65
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = 0.2
	}
	if cfg.Retrieval.TimeoutSecs == 0 {
		cfg.Retrieval.TimeoutSecs = 4
	}

	if cfg.Prompt.ChunkCharLimit == 0 {
		cfg.Prompt.ChunkCharLimit = 1500
	}
	if cfg.Prompt.ContextBudget == 0 {
		cfg.Prompt.ContextBudget = 8000
	}
	if cfg.Prompt.HistoryWindow == 0 {
		cfg.Prompt.HistoryWindow = 6
	}

	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.65
	}
	if cfg.LLM.TopP == 0 {
		cfg.LLM.TopP = 0.9
	}
	if cfg.LLM.FrequencyPenalty == 0 {
		cfg.LLM.FrequencyPenalty = 0.3
	}
	if cfg.LLM.PresencePenalty == 0 {
		cfg.LLM.PresencePenalty = 0.3
	}
	if cfg.LLM.BriefMaxTokens == 0 {
		cfg.LLM.BriefMaxTokens = 800
	}
	if cfg.LLM.DetailedMaxTokens == 0 {
		cfg.LLM.DetailedMaxTokens = 4096
	}
}
