package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Record(ctx, Entry{RecordID: "p1.json", Status: "partial", GraphError: "graph index upsert: refused"}))

	got, err := s.Get(ctx, "p1.json")
	require.NoError(t, err)
	assert.Equal(t, "partial", got.Status)
	assert.Equal(t, "graph index upsert: refused", got.GraphError)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, fixed.Equal(got.UpdatedAt))
}

func TestStore_RecordOverwritesAndCountsAttempts(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Entry{RecordID: "p1.json", Status: "failed", Error: "both down"}))
	require.NoError(t, s.Record(ctx, Entry{RecordID: "p1.json", Status: "added"}))

	got, err := s.Get(ctx, "p1.json")
	require.NoError(t, err)
	assert.Equal(t, "added", got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, 2, got.Attempts)
}

func TestStore_GetMissing(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get(context.Background(), "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListAndSummary(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for id, status := range map[string]string{"c.json": "added", "a.json": "added", "b.json": "skipped"} {
		require.NoError(t, s.Record(ctx, Entry{RecordID: id, Status: status}))
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a.json", "b.json", "c.json"}, []string{all[0].RecordID, all[1].RecordID, all[2].RecordID})

	added, err := s.List(ctx, "added")
	require.NoError(t, err)
	assert.Len(t, added, 2)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"added": 2, "skipped": 1}, sum)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{RecordID: "p1.json", Status: "added"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "p1.json")
	require.NoError(t, err)
	assert.Equal(t, "added", got.Status)
}

func TestStore_RejectsEmptyID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Record(context.Background(), Entry{Status: "added"}))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
