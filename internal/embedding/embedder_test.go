package embedding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/config"
)

func TestNew(t *testing.T) {
	emb, err := New(config.EncoderConfig{Type: "tfidf"})
	require.NoError(t, err)
	assert.Equal(t, "tfidf", emb.Name())
	_, ok := emb.(Stateful)
	assert.True(t, ok, "tfidf embedder must persist its vocabulary")

	t.Setenv("LEGALRAG_EMBED_KEY", "sk-test")
	emb, err = New(config.EncoderConfig{Type: "openai", APIKeyEnv: "LEGALRAG_EMBED_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "openai", emb.Name())
	_, ok = emb.(Stateful)
	assert.False(t, ok)

	_, err = New(config.EncoderConfig{Type: "openai", APIKeyEnv: "LEGALRAG_EMBED_KEY_UNSET"})
	assert.Error(t, err)

	_, err = New(config.EncoderConfig{Type: "bert"})
	assert.Error(t, err)
}

func TestStatePath(t *testing.T) {
	emb, err := New(config.EncoderConfig{Type: "tfidf"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("db", "tfidf.json"), StatePath("db", emb))
}
