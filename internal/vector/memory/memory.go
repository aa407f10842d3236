// Package memory is an in-process vector repository using brute-force cosine
// similarity. It backs tests and offline runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/efebarandurmaz/hybridrag/internal/vector"
)

// Repository keeps entries in a map keyed by record id.
type Repository struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]vector.Entry
	closed    bool
}

// New creates an empty repository. The dimension is fixed by the first
// EnsureCollection call.
func New() *Repository {
	return &Repository{entries: make(map[string]vector.Entry)}
}

var errClosed = errors.New("memory vector repository closed")

func (r *Repository) EnsureCollection(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	if r.dimension != 0 && r.dimension != dim {
		return fmt.Errorf("collection has dimension %d, requested %d", r.dimension, dim)
	}
	r.dimension = dim
	return nil
}

func (r *Repository) Upsert(_ context.Context, entries []vector.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	for _, e := range entries {
		if r.dimension == 0 {
			r.dimension = len(e.Vector)
		}
		if len(e.Vector) != r.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), r.dimension)
		}
	}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *Repository) Search(_ context.Context, vec []float32, topK int) ([]vector.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed
	}
	if topK <= 0 {
		topK = vector.DefaultK
	}

	results := make([]vector.SearchResult, 0, len(r.entries))
	for _, e := range r.entries {
		results = append(results, vector.SearchResult{
			ID:       e.ID,
			Score:    cosine(e.Vector, vec),
			Content:  e.Content,
			Seq:      e.Seq,
			Metadata: e.Metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len reports the number of stored entries.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Get returns the entry stored for id.
func (r *Repository) Get(id string) (vector.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ vector.Repository = (*Repository)(nil)
