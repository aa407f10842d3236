package vector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/vector"
	"github.com/efebarandurmaz/hybridrag/internal/vector/memory"
)

const dim = 256

func newIndex(t *testing.T) (*vector.Index, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	var n int64
	ix := vector.NewIndex(memory.NewHashEmbedder(dim), repo, dim, vector.WithSequence(func() int64 {
		n++
		return n
	}))
	require.NoError(t, ix.EnsureCollection(context.Background()))
	return ix, repo
}

func TestIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	ix, _ := newIndex(t)

	require.NoError(t, ix.Upsert(ctx, "p1.json", "autism spectrum disorder in children", map[string]string{"source": "p1.json"}))
	require.NoError(t, ix.Upsert(ctx, "p2.json", "graph neural networks for molecules", nil))

	got, err := ix.QuerySimilar(ctx, "autism", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1.json", got[0].DocID)
	assert.Equal(t, domain.SourceVector, got[0].Source)
	assert.Equal(t, "autism spectrum disorder in children", got[0].Text)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix, repo := newIndex(t)

	require.NoError(t, ix.Upsert(ctx, "p1.json", "first version", nil))
	require.NoError(t, ix.Upsert(ctx, "p1.json", "second version", nil))

	assert.Equal(t, 1, repo.Len())
	e, ok := repo.Get("p1.json")
	require.True(t, ok)
	assert.Equal(t, "second version", e.Content)
}

func TestIndex_QueryOrdersTiesBySequence(t *testing.T) {
	ctx := context.Background()
	ix, _ := newIndex(t)

	// Identical texts embed identically and therefore score equally.
	for _, id := range []string{"c.json", "a.json", "b.json"} {
		require.NoError(t, ix.Upsert(ctx, id, "same words everywhere", nil))
	}

	for i := 0; i < 5; i++ {
		got, err := ix.QuerySimilar(ctx, "same words", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c.json", got[0].DocID)
		assert.Equal(t, "a.json", got[1].DocID)
	}
}

func TestIndex_QueryFewerThanK(t *testing.T) {
	ctx := context.Background()
	ix, _ := newIndex(t)
	require.NoError(t, ix.Upsert(ctx, "only.json", "lonely text", nil))

	got, err := ix.QuerySimilar(ctx, "anything", vector.MaxK)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIndex_QueryValidatesK(t *testing.T) {
	ix, _ := newIndex(t)
	for _, k := range []int{0, -1, vector.MaxK + 1} {
		_, err := ix.QuerySimilar(context.Background(), "q", k)
		assert.ErrorIs(t, err, domain.ErrValidation, "k=%d", k)
	}
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, []string) ([][]float32, error) { return nil, f.err }

func TestIndex_EmbedFailureIsIndexError(t *testing.T) {
	ix := vector.NewIndex(failingEmbedder{err: errors.New("connection refused")}, memory.New(), dim)

	err := ix.Upsert(context.Background(), "p1.json", "text", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	var ie *domain.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, domain.StoreVector, ie.Store)
	assert.Equal(t, "embed", ie.Op)

	passages, err := ix.QuerySimilar(context.Background(), "text", 2)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Nil(t, passages)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := vector.NewIndex(memory.NewHashEmbedder(8), memory.New(), dim)
	err := ix.Upsert(context.Background(), "p1.json", "text", nil)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestIndex_ClosedRepository(t *testing.T) {
	ix, _ := newIndex(t)
	require.NoError(t, ix.Close())

	_, err := ix.QuerySimilar(context.Background(), "q", 2)
	var ie *domain.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "query", ie.Op)
}

func TestPointID(t *testing.T) {
	a := vector.PointID("p1.json")
	assert.Equal(t, a, vector.PointID("p1.json"))
	assert.NotEqual(t, a, vector.PointID("p2.json"))
	assert.Len(t, a, 36)
}
