package vector

import "context"

// Entry is one stored vector. ID is the record id; backends derive their own
// point ids from it.
type Entry struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
	// Seq orders entries that score equally; larger means upserted later.
	Seq int64
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Seq      int64
	Metadata map[string]string
}

// Repository provides vector storage and similarity search.
type Repository interface {
	// EnsureCollection creates the backing collection for dim-sized vectors
	// when missing. An existing collection with another size is an error.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert inserts or replaces entries by ID.
	Upsert(ctx context.Context, entries []Entry) error
	// Search finds the top-k most similar entries.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}

// Embedder turns texts into vectors with a model fixed for the life of a
// collection. llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
