package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.RAG.Enabled)
	assert.Equal(t, "jacref.db", cfg.RAG.DBPath)
	assert.Equal(t, 15, cfg.RAG.RulesPerSection)
	assert.Equal(t, 3, cfg.RAG.ExamplesPerSection)
	assert.InDelta(t, 0.5, cfg.RAG.MMRLambda, 1e-9)
	assert.Equal(t, "gemini", cfg.RAG.Embedding.Provider)
	assert.Equal(t, "anthropic", cfg.Assembly.Provider)
	assert.Equal(t, "jac", cfg.Validation.JacBinary)
	assert.InDelta(t, 90.0, cfg.Validation.FailThreshold, 1e-9)
}

func TestLoadConfig_YAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `source:
  docs_dir: corpus/docs
  rules_doc: corpus/instructions.md
rag:
  db_path: custom.db
  mmr_lambda: 0.7
assembly:
  provider: openai
  model: gpt-4o
validation:
  fail_threshold: 95
  strict: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "corpus/docs", cfg.Source.DocsDir)
	assert.Equal(t, "custom.db", cfg.RAG.DBPath)
	assert.InDelta(t, 0.7, cfg.RAG.MMRLambda, 1e-9)
	assert.Equal(t, "openai", cfg.Assembly.Provider)
	assert.True(t, cfg.Validation.Strict)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15, cfg.RAG.RulesPerSection)
	assert.Equal(t, "gemini", cfg.RAG.Embedding.Provider)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assembly:\n  provider: openai\n"), 0o644))

	t.Setenv("JACREF_LLM_PROVIDER", "anthropic")
	t.Setenv("JACREF_API_KEY", "env-key")
	t.Setenv("JACREF_RAG_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Assembly.Provider)
	assert.Equal(t, "env-key", cfg.Assembly.APIKey)
	assert.False(t, cfg.RAG.Enabled)
}

func TestLoadConfig_AIProviderAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	t.Setenv("JACREF_AI_PROVIDER", "google")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Assembly.Provider)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
