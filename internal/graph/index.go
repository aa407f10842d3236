package graph

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
)

const (
	// DefaultLimit is the number of sections returned when none is configured.
	DefaultLimit = 2
	// MaxLimit bounds a single search.
	MaxLimit = 16
)

// Index is the graph side of hybrid retrieval. It classifies repository
// failures as domain.IndexError and enforces result limits.
type Index struct {
	repo   Repository
	logger *zap.Logger
}

// NewIndex wraps repo. A nil logger discards output.
func NewIndex(repo Repository, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{repo: repo, logger: logger}
}

// EnsureSchema creates the uniqueness constraints.
func (ix *Index) EnsureSchema(ctx context.Context) error {
	ctx, span := observability.StartStoreSpan(ctx, domain.StoreGraph, "ensure_schema")
	defer span.End()

	if err := ix.repo.EnsureSchema(ctx); err != nil {
		observability.RecordError(span, err)
		return ix.fail("ensure_schema", err)
	}
	return nil
}

// Upsert stores text as the full-text section of document id. meta is
// accepted for symmetry with the vector index; the graph keeps only the id.
func (ix *Index) Upsert(ctx context.Context, id, text string, _ map[string]string) error {
	return ix.UpsertDocument(ctx, id, domain.SectionName(id), text)
}

// UpsertDocument merges the Document and Section nodes and the edge between
// them in a single write.
func (ix *Index) UpsertDocument(ctx context.Context, id, sectionName, text string) error {
	ctx, span := observability.StartStoreSpan(ctx, domain.StoreGraph, "upsert")
	defer span.End()

	if err := ix.repo.UpsertDocument(ctx, id, sectionName, text); err != nil {
		observability.RecordError(span, err)
		return ix.fail("upsert", err)
	}
	return nil
}

// Search returns up to limit passages whose section text contains query,
// ignoring case.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]domain.Passage, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit=%d outside [1, %d]", domain.ErrValidation, limit, MaxLimit)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}

	ctx, span := observability.StartStoreSpan(ctx, domain.StoreGraph, "search")
	defer span.End()

	sections, err := ix.repo.SearchSections(ctx, query, limit)
	if err != nil {
		observability.RecordError(span, err)
		return nil, ix.fail("search", err)
	}
	if len(sections) > limit {
		sections = sections[:limit]
	}

	out := make([]domain.Passage, len(sections))
	for i, s := range sections {
		out[i] = domain.Passage{Text: s.Text, Source: domain.SourceGraph, DocID: s.DocID}
	}
	return out, nil
}

// SearchText is Search reduced to the passage texts.
func (ix *Index) SearchText(ctx context.Context, query string, limit int) ([]string, error) {
	passages, err := ix.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return texts, nil
}

// Close releases the underlying repository.
func (ix *Index) Close(ctx context.Context) error {
	return ix.repo.Close(ctx)
}

func (ix *Index) fail(op string, err error) error {
	metrics.StoreFailuresTotal.WithLabelValues(domain.StoreGraph, op).Inc()
	ix.logger.Warn("graph index operation failed", zap.String("op", op), zap.Error(err))
	return domain.NewIndexError(domain.StoreGraph, op, err)
}
