package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 1500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Retrieval.FetchK)
	assert.InDelta(t, 0.65, cfg.Retrieval.Lambda, 1e-9)
	assert.InDelta(t, 0.2, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, 8000, cfg.Prompt.ContextBudget)
	assert.Equal(t, 4096, cfg.LLM.DetailedMaxTokens)
}

func TestLoadAppliesPartialDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  top_k: 3
embedder:
  type: openai
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 6, cfg.Retrieval.FetchK, "fetch_k derived from top_k")
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.SQLite = &SQLiteConfig{Path: "index.db"}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", got.VectorStore.Type)
	require.NotNil(t, got.VectorStore.SQLite)
	assert.Equal(t, "index.db", got.VectorStore.SQLite.Path)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
