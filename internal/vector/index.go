package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
)

const (
	// DefaultK is the number of passages returned when no k is configured.
	DefaultK = 2
	// MaxK bounds k for a single similarity query.
	MaxK = 16
)

// Index embeds texts and stores them in a Repository keyed by record id.
type Index struct {
	embedder Embedder
	repo     Repository
	dim      int
	logger   *zap.Logger
	seq      func() int64
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// WithSequence replaces the upsert sequence source. Values must increase
// across calls.
func WithSequence(next func() int64) Option {
	return func(ix *Index) { ix.seq = next }
}

// NewIndex builds a vector index. dim is the embedding dimension of the
// collection; 0 disables the dimension check.
func NewIndex(embedder Embedder, repo Repository, dim int, opts ...Option) *Index {
	ix := &Index{
		embedder: embedder,
		repo:     repo,
		dim:      dim,
		logger:   zap.NewNop(),
		seq:      newClock().next,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// EnsureCollection creates the collection for the configured dimension.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	ctx, span := observability.StartStoreSpan(ctx, domain.StoreVector, "ensure_collection")
	defer span.End()

	if err := ix.repo.EnsureCollection(ctx, ix.dim); err != nil {
		observability.RecordError(span, err)
		return ix.fail("ensure_collection", err)
	}
	return nil
}

// Upsert embeds text and stores it under id, replacing any previous vector.
func (ix *Index) Upsert(ctx context.Context, id, text string, meta map[string]string) error {
	ctx, span := observability.StartStoreSpan(ctx, domain.StoreVector, "upsert")
	defer span.End()

	vec, err := ix.embedOne(ctx, text)
	if err != nil {
		observability.RecordError(span, err)
		return ix.fail("embed", err)
	}

	md := make(map[string]string, len(meta))
	for k, v := range meta {
		md[k] = v
	}
	entry := Entry{ID: id, Content: text, Vector: vec, Metadata: md, Seq: ix.seq()}
	if err := ix.repo.Upsert(ctx, []Entry{entry}); err != nil {
		observability.RecordError(span, err)
		return ix.fail("upsert", err)
	}
	return nil
}

// QuerySimilar returns up to k passages ordered by descending score. Equal
// scores are ordered by upsert sequence, then by record id.
func (ix *Index) QuerySimilar(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k < 1 || k > MaxK {
		return nil, fmt.Errorf("%w: k=%d outside [1, %d]", domain.ErrValidation, k, MaxK)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}

	ctx, span := observability.StartStoreSpan(ctx, domain.StoreVector, "query")
	defer span.End()

	vec, err := ix.embedOne(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, ix.fail("embed", err)
	}

	// Over-fetch so ties straddling the cut-off are resolved here rather
	// than by backend order.
	hits, err := ix.repo.Search(ctx, vec, k*2)
	if err != nil {
		observability.RecordError(span, err)
		return nil, ix.fail("query", err)
	}

	sortResults(hits)
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]domain.Passage, len(hits))
	for i, h := range hits {
		out[i] = domain.Passage{
			Text:   h.Content,
			Source: domain.SourceVector,
			Score:  h.Score,
			DocID:  h.ID,
		}
	}
	return out, nil
}

// Close releases the underlying repository.
func (ix *Index) Close() error {
	return ix.repo.Close()
}

func (ix *Index) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want 1", len(vecs))
	}
	if ix.dim > 0 && len(vecs[0]) != ix.dim {
		return nil, fmt.Errorf("embedding dimension %d, collection expects %d", len(vecs[0]), ix.dim)
	}
	return vecs[0], nil
}

func (ix *Index) fail(op string, err error) error {
	metrics.StoreFailuresTotal.WithLabelValues(domain.StoreVector, op).Inc()
	ix.logger.Warn("vector index operation failed", zap.String("op", op), zap.Error(err))
	return domain.NewIndexError(domain.StoreVector, op, err)
}

func sortResults(hits []SearchResult) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
}

// clock hands out strictly increasing wall-clock nanoseconds so sequence
// values stay comparable across process restarts.
type clock struct {
	last atomic.Int64
}

func newClock() *clock { return &clock{} }

func (c *clock) next() int64 {
	for {
		now := time.Now().UnixNano()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
