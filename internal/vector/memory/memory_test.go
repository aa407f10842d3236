package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/hybridrag/internal/vector"
)

func TestRepository_EnsureCollection(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.EnsureCollection(ctx, 4))
	require.NoError(t, r.EnsureCollection(ctx, 4))
	assert.Error(t, r.EnsureCollection(ctx, 8))
	assert.Error(t, r.EnsureCollection(ctx, 0))
}

func TestRepository_SearchOrdersByScore(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, []vector.Entry{
		{ID: "x", Content: "x", Vector: []float32{1, 0}, Seq: 1},
		{ID: "y", Content: "y", Vector: []float32{0, 1}, Seq: 2},
		{ID: "z", Content: "z", Vector: []float32{1, 1}, Seq: 3},
	}))

	got, err := r.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "z", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)
}

func TestRepository_UpsertRejectsDimensionMismatch(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.EnsureCollection(ctx, 2))
	err := r.Upsert(ctx, []vector.Entry{{ID: "a", Vector: []float32{1, 2, 3}}})
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(16)
	vecs, err := e.Embed(context.Background(), []string{"Autism research", "autism RESEARCH", "", "unrelated topic"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Equal(t, vecs[0], vecs[1], "case-insensitive tokens")
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
	assert.Equal(t, float32(0), cosine(vecs[2], vecs[0]), "empty text has no similarity")
	assert.Less(t, cosine(vecs[0], vecs[3]), float32(0.99))
}
