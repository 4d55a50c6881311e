package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

func TestScorerFor(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0.6, 0.8}

	cos, err := ScorerFor("cosine")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cos(a, b), 1e-9)
	assert.InDelta(t, 1.0, cos(a, a), 1e-9)
	assert.Zero(t, cos(a, []float64{0, 0}))

	ip, err := ScorerFor("ip")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, ip(a, b), 1e-9)

	l2, err := ScorerFor("l2")
	require.NoError(t, err)
	// |a-b|^2 = 0.16 + 0.64
	assert.InDelta(t, 0.2, l2(a, b), 1e-9)
	assert.InDelta(t, 1.0, l2(b, b), 1e-9)

	_, err = ScorerFor("hamming")
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	in := []domain.Match{
		{Section: domain.Section{Number: "1"}, Score: 0.4},
		{Section: domain.Section{Number: "2"}, Score: 0.9},
		{Section: domain.Section{Number: "3"}, Score: 0.7},
		{Section: domain.Section{Number: "4"}, Score: 0.7},
		{Section: domain.Section{Number: "5"}, Score: 0.8},
	}
	got := Rank(in, 3, 0.5)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Section.Number)
	assert.Equal(t, "5", got[1].Section.Number)
	assert.Equal(t, "3", got[2].Section.Number)

	// input untouched
	assert.Equal(t, "1", in[0].Section.Number)

	assert.Empty(t, Rank(in, 3, 0.95))
	assert.Len(t, Rank(in, 0, -1), 5)
}
