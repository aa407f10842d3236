// Package memory is an in-process graph repository for tests and offline use.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/hybridrag/internal/graph"
)

var errClosed = errors.New("memory graph repository closed")

// Repository stores one section per name and the document that owns it.
type Repository struct {
	mu       sync.RWMutex
	docs     map[string]struct{}
	sections map[string]graph.Section
	closed   bool
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		docs:     make(map[string]struct{}),
		sections: make(map[string]graph.Section),
	}
}

func (r *Repository) EnsureSchema(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errClosed
	}
	return nil
}

func (r *Repository) UpsertDocument(_ context.Context, docID, sectionName, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	r.docs[docID] = struct{}{}
	r.sections[sectionName] = graph.Section{DocID: docID, Name: sectionName, Text: text}
	return nil
}

func (r *Repository) SearchSections(_ context.Context, query string, limit int) ([]graph.Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}

	q := strings.ToLower(query)
	var out []graph.Section
	for _, s := range r.sections {
		if strings.Contains(strings.ToLower(s.Text), q) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Documents reports the number of Document nodes.
func (r *Repository) Documents() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Sections reports the number of Section nodes.
func (r *Repository) Sections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sections)
}

func (r *Repository) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

var _ graph.Repository = (*Repository)(nil)
