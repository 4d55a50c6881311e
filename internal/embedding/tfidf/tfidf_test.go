package tfidf

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

var corpus = []string{
	"Whoever commits murder shall be punished with death or imprisonment for life.",
	"Whoever commits theft shall be punished with imprisonment.",
	"Criminal intimidation by threatening injury to person or reputation.",
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbedder_RequiresPrepare(t *testing.T) {
	e := NewEmbedder()
	_, err := e.Embed(context.Background(), "murder")
	assert.ErrorIs(t, err, domain.ErrNotPrepared)
	assert.Error(t, e.Prepare(context.Background(), nil))
	assert.ErrorIs(t, e.Save(filepath.Join(t.TempDir(), "v.json")), domain.ErrNotPrepared)
}

func TestEmbedder_NormalisedAndRanked(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))
	assert.Greater(t, e.Dimension(), 5)

	q, err := e.Embed(ctx, "murder punishment")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, math.Sqrt(dot(q, q)), 1e-9)

	murder, _ := e.Embed(ctx, corpus[0])
	threat, _ := e.Embed(ctx, corpus[2])
	assert.Greater(t, dot(q, murder), dot(q, threat))

	zero, err := e.Embed(ctx, "the of and")
	require.NoError(t, err)
	assert.Zero(t, dot(zero, zero))
}

func TestEmbedder_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "tfidf.json")

	a := NewEmbedder()
	require.NoError(t, a.Prepare(ctx, corpus))
	require.NoError(t, a.Save(path))

	b := NewEmbedder()
	require.NoError(t, b.Load(path))
	assert.Equal(t, a.Dimension(), b.Dimension())

	va, _ := a.Embed(ctx, "criminal intimidation")
	vb, _ := b.Embed(ctx, "criminal intimidation")
	assert.Equal(t, va, vb)
}

func TestEmbedder_LoadMissing(t *testing.T) {
	err := NewEmbedder().Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, domain.ErrNotPrepared)
}
