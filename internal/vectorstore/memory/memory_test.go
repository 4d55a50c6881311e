package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

func sec(n, title string) domain.Section {
	return domain.Section{Number: n, Title: title, Content: title + " content", Chapter: "CHAPTER I"}
}

func TestStorage_UpsertSearchGet(t *testing.T) {
	ctx := context.Background()
	st, err := NewStorage("cosine")
	require.NoError(t, err)
	require.NoError(t, st.Init(ctx, 2))

	require.NoError(t, st.Upsert(ctx,
		[]domain.Section{sec("1", "murder"), sec("2", "theft")},
		[][]float64{{1, 0}, {0, 1}},
	))

	res, err := st.Search(ctx, []float64{0.9, 0.1}, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1", res[0].Section.Number)

	res, err = st.Search(ctx, []float64{1, 0}, 10, -1)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	got, err := st.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "theft", got.Title)

	_, err = st.Get(ctx, "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStorage_UpsertReplacesSameNumber(t *testing.T) {
	ctx := context.Background()
	st, _ := NewStorage("cosine")
	require.NoError(t, st.Init(ctx, 2))
	require.NoError(t, st.Upsert(ctx, []domain.Section{sec("1", "old")}, [][]float64{{1, 0}}))
	require.NoError(t, st.Upsert(ctx, []domain.Section{sec("1", "new")}, [][]float64{{0, 1}}))

	n, _ := st.Count(ctx)
	assert.Equal(t, 1, n)
	got, _ := st.Get(ctx, "1")
	assert.Equal(t, "new", got.Title)

	res, _ := st.Search(ctx, []float64{0, 1}, 1, 0.9)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestStorage_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := NewStorage("jaccard")
	assert.Error(t, err)

	st, _ := NewStorage("ip")
	assert.Error(t, st.Init(ctx, 0))
	require.NoError(t, st.Init(ctx, 3))
	assert.ErrorIs(t, st.Upsert(ctx, []domain.Section{sec("1", "x")}, [][]float64{{1, 0}}), domain.ErrDimensionMismatch)
	assert.Error(t, st.Upsert(ctx, []domain.Section{sec("1", "x")}, nil))

	require.NoError(t, st.Upsert(ctx, []domain.Section{sec("1", "x")}, [][]float64{{1, 0, 0}}))
	require.NoError(t, st.Clear(ctx))
	n, _ := st.Count(ctx)
	assert.Zero(t, n)
}
