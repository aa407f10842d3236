package graph

import "context"

// Section is a stored section node together with its owning document id.
type Section struct {
	DocID string
	Name  string
	Text  string
}

// Repository provides document/section storage with substring search.
type Repository interface {
	// EnsureSchema creates the uniqueness constraints. Safe to repeat.
	EnsureSchema(ctx context.Context) error
	// UpsertDocument merges the document, its section and the edge between
	// them, replacing the section text.
	UpsertDocument(ctx context.Context, docID, sectionName, text string) error
	// SearchSections returns sections whose text contains query, ignoring
	// case, ordered by section name.
	SearchSections(ctx context.Context, query string, limit int) ([]Section, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
