package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "badger", cfg.VectorDB.Type)
	assert.Equal(t, "bns_sections", cfg.VectorDB.Collection)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Zero(t, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 4, cfg.Assistant.ContextMessages)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FillsPartialModelSettings(t *testing.T) {
	p := writeConfig(t, `
llm:
  provider: OpenAI
  models:
    openai:
      model_name: gpt-4o
      temperature: 0.3
retrieval:
  k: 5
  score_threshold: 0.2
system_prompt: "You are terse."
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	m := cfg.ActiveModel()
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", m.ModelName)
	assert.InDelta(t, 0.3, m.Temperature, 1e-9)
	assert.Equal(t, 2048, m.MaxTokens)
	assert.Equal(t, "OPENAI_API_KEY", m.APIKeyEnv)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Models["groq"].ModelName)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, "You are terse.", cfg.SystemPrompt)
	assert.Equal(t, "tfidf", cfg.Encoder.Type)
}

func TestLoad_OpenAIEncoderDefaults(t *testing.T) {
	p := writeConfig(t, "encoder:\n  type: openai\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", cfg.Encoder.ModelName)
	assert.Equal(t, 30, cfg.Encoder.TimeoutSecs)
	assert.Equal(t, 5, cfg.Encoder.MaxRetries)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"provider": "llm:\n  provider: cohere\n",
		"encoder":  "encoder:\n  type: word2vec\n",
		"store":    "vector_db:\n  type: chroma\n",
		"distance": "vector_db:\n  distance_strategy: manhattan\n",
		"qdrant":   "vector_db:\n  type: qdrant\n",
		"k":        "retrieval:\n  k: -2\n",
		"score":    "retrieval:\n  score_threshold: 3\n",
		"yaml":     "llm: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorDB.Type = "qdrant"
	cfg.VectorDB.Qdrant = &QdrantConfig{URL: "http://localhost:6333"}
	require.NoError(t, Save(p, cfg))

	loaded, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", loaded.VectorDB.Type)
	assert.Equal(t, 15, loaded.VectorDB.Qdrant.TimeoutSecs)
}

func TestAPIKey(t *testing.T) {
	t.Setenv("LEGALRAG_TEST_KEY", "sk-test")
	key, err := APIKey("LEGALRAG_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = APIKey("LEGALRAG_TEST_KEY_UNSET")
	assert.Error(t, err)

	key, err = APIKey("")
	require.NoError(t, err)
	assert.Empty(t, key)
}
