package neo4j

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against a live server when HYBRIDRAG_TEST_NEO4J_URI
// is set, e.g. neo4j://127.0.0.1:7687.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	uri := os.Getenv("HYBRIDRAG_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("HYBRIDRAG_TEST_NEO4J_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := New(Config{
		URI:      uri,
		Username: envOr("HYBRIDRAG_TEST_NEO4J_USER", "neo4j"),
		Password: os.Getenv("HYBRIDRAG_TEST_NEO4J_PASSWORD"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestRepository_UpsertIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := "it-" + time.Now().Format("150405.000000") + ".json"

	require.NoError(t, repo.UpsertDocument(ctx, id, id+"_FullText", "First draft about Autism"))
	require.NoError(t, repo.UpsertDocument(ctx, id, id+"_FullText", "Final text about AUTISM screening"))
	require.NoError(t, repo.EnsureSchema(ctx), "constraints are created once")

	got, err := repo.SearchSections(ctx, "autism screening", 16)
	require.NoError(t, err)

	var matches int
	for _, s := range got {
		if s.DocID == id {
			matches++
			assert.Equal(t, "Final text about AUTISM screening", s.Text)
		}
	}
	assert.Equal(t, 1, matches)
}

func TestRepository_SearchRespectsLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	prefix := "lim-" + time.Now().Format("150405.000000")

	for _, suffix := range []string{"a", "b", "c"} {
		id := prefix + suffix + ".json"
		require.NoError(t, repo.UpsertDocument(ctx, id, id+"_FullText", prefix+" shared marker"))
	}

	got, err := repo.SearchSections(ctx, prefix, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Name, got[1].Name)
}
