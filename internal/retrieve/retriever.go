// Package retrieve assembles query context from the vector and graph
// indexes.
package retrieve

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
)

// VectorSource is the similarity side. vector.Index satisfies it.
type VectorSource interface {
	QuerySimilar(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

// GraphSource is the keyword side. graph.Index satisfies it.
type GraphSource interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Passage, error)
}

// Config bounds a retrieval.
type Config struct {
	VectorK       int
	GraphK        int
	MaxPassages   int
	SourceTimeout time.Duration
}

// DefaultConfig returns k=2 per source, at most 4 passages and a 10s
// per-source timeout.
func DefaultConfig() Config {
	return Config{VectorK: 2, GraphK: 2, MaxPassages: 4, SourceTimeout: 10 * time.Second}
}

// Retriever queries both sources and merges their passages. It never
// writes to either index.
type Retriever struct {
	vector VectorSource
	graph  GraphSource
	cfg    Config
	logger *zap.Logger
}

// New creates a retriever. A nil source is treated as absent. Zero config
// fields take their defaults.
func New(vec VectorSource, graph GraphSource, cfg Config, logger *zap.Logger) *Retriever {
	def := DefaultConfig()
	if cfg.VectorK <= 0 {
		cfg.VectorK = def.VectorK
	}
	if cfg.GraphK <= 0 {
		cfg.GraphK = def.GraphK
	}
	if cfg.MaxPassages <= 0 {
		cfg.MaxPassages = def.MaxPassages
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = def.SourceTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{vector: vec, graph: graph, cfg: cfg, logger: logger}
}

// Retrieve returns vector passages followed by graph passages, without
// exact duplicates, capped at MaxPassages. A failing source contributes
// nothing and is reported in Bundle.SourceErrors. When nothing is found
// the bundle holds the single sentinel passage.
func (r *Retriever) Retrieve(ctx context.Context, query string) domain.Bundle {
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := observability.StartRetrieveSpan(ctx, len(query))
	defer span.End()

	if strings.TrimSpace(query) == "" {
		observability.RecordRetrieveResult(span, 0, nil)
		return domain.Bundle{Passages: []domain.Passage{domain.SentinelPassage()}}
	}

	var (
		vecPassages, graphPassages []domain.Passage
		vecErr, graphErr           error
		g                          errgroup.Group
	)
	if r.vector != nil {
		g.Go(func() error {
			vecPassages, vecErr = r.query(ctx, domain.StoreVector, func(ctx context.Context) ([]domain.Passage, error) {
				return r.vector.QuerySimilar(ctx, query, r.cfg.VectorK)
			})
			return nil
		})
	}
	if r.graph != nil {
		g.Go(func() error {
			graphPassages, graphErr = r.query(ctx, domain.StoreGraph, func(ctx context.Context) ([]domain.Passage, error) {
				return r.graph.Search(ctx, query, r.cfg.GraphK)
			})
			return nil
		})
	}
	_ = g.Wait()

	bundle := domain.Bundle{}
	var failed []string
	for _, se := range []struct {
		store string
		err   error
	}{{domain.StoreVector, vecErr}, {domain.StoreGraph, graphErr}} {
		if se.err == nil {
			continue
		}
		if bundle.SourceErrors == nil {
			bundle.SourceErrors = make(map[string]error)
		}
		bundle.SourceErrors[se.store] = se.err
		failed = append(failed, se.store)
	}

	metrics.RetrievalPassages.WithLabelValues(domain.StoreVector).Observe(float64(len(vecPassages)))
	metrics.RetrievalPassages.WithLabelValues(domain.StoreGraph).Observe(float64(len(graphPassages)))

	bundle.Passages = Merge(r.cfg.MaxPassages, vecPassages, graphPassages)
	if len(bundle.Passages) == 0 {
		bundle.Passages = []domain.Passage{domain.SentinelPassage()}
	}

	observability.RecordRetrieveResult(span, len(bundle.Passages), failed)
	r.logger.Debug("retrieved context",
		zap.Int("vector", len(vecPassages)),
		zap.Int("graph", len(graphPassages)),
		zap.Int("passages", len(bundle.Passages)),
		zap.Strings("failed_sources", failed),
	)
	return bundle
}

func (r *Retriever) query(ctx context.Context, store string, fn func(context.Context) ([]domain.Passage, error)) ([]domain.Passage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SourceTimeout)
	defer cancel()

	passages, err := fn(ctx)
	if err != nil {
		err = domain.NewIndexError(store, "query", err)
		r.logger.Warn("retrieval source failed", zap.String("store", store), zap.Error(err))
		return nil, err
	}
	return passages, nil
}

// Merge concatenates the lists in order, drops passages whose text was
// already seen and truncates to limit.
func Merge(limit int, lists ...[]domain.Passage) []domain.Passage {
	seen := make(map[string]struct{})
	var out []domain.Passage
	for _, list := range lists {
		for _, p := range list {
			if len(out) == limit {
				return out
			}
			if _, dup := seen[p.Text]; dup {
				continue
			}
			seen[p.Text] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
