// Package app builds the RetrievalContext: every index, client and
// pipeline component the commands, HTTP server and worker share.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/answer"
	"github.com/efebarandurmaz/hybridrag/internal/config"
	"github.com/efebarandurmaz/hybridrag/internal/corpus"
	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/graph"
	graphmem "github.com/efebarandurmaz/hybridrag/internal/graph/memory"
	graphneo4j "github.com/efebarandurmaz/hybridrag/internal/graph/neo4j"
	"github.com/efebarandurmaz/hybridrag/internal/ingest"
	"github.com/efebarandurmaz/hybridrag/internal/ledger"
	"github.com/efebarandurmaz/hybridrag/internal/llm"
	"github.com/efebarandurmaz/hybridrag/internal/llm/openai"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/retrieve"
	"github.com/efebarandurmaz/hybridrag/internal/vector"
	"github.com/efebarandurmaz/hybridrag/internal/vector/embcache"
	vectormem "github.com/efebarandurmaz/hybridrag/internal/vector/memory"
	vectorqdrant "github.com/efebarandurmaz/hybridrag/internal/vector/qdrant"
)

// HashEmbeddingModel selects the offline feature-hashing embedder instead
// of the provider's embedding endpoint.
const HashEmbeddingModel = "hash"

// Check is a named connectivity probe used by health endpoints and the
// status command.
type Check struct {
	Name string
	Kind string // "database", "llm" or "cache"
	Fn   func(ctx context.Context) error
}

// Options tunes what New builds.
type Options struct {
	// Provider replaces the configured LLM backend. Tests use it.
	Provider llm.Provider
	// WithLedger opens the ingestion ledger at cfg.Ingest.LedgerPath.
	WithLedger bool
	// SkipModel skips answer model resolution for commands that only ingest.
	SkipModel bool
	// RequireStores makes a store that cannot be prepared at startup an
	// error. Without it the store stays wired, its setup error is kept in
	// StoreErrors and queries degrade to the other source.
	RequireStores bool
	// StoreSetupTimeout bounds schema and collection setup per store.
	// Zero means DefaultStoreSetupTimeout.
	StoreSetupTimeout time.Duration
}

// DefaultStoreSetupTimeout bounds EnsureCollection and EnsureSchema at
// startup.
const DefaultStoreSetupTimeout = 10 * time.Second

// RetrievalContext holds the components built once at startup.
type RetrievalContext struct {
	Config *config.Config
	Logger *zap.Logger

	Provider llm.Provider
	// Model is the resolved answer model. When resolution failed it is
	// empty and ModelErr explains why.
	Model    string
	ModelErr error

	// StoreErrors holds, per store, the setup error of a store that was
	// unreachable at startup.
	StoreErrors map[string]error

	Vector      *vector.Index
	Graph       *graph.Index
	Corpus      *corpus.Store
	Ledger      *ledger.Store
	Retriever   *retrieve.Retriever
	Coordinator *ingest.Coordinator
	Generator   *answer.Generator

	checks  []Check
	closers []func(ctx context.Context) error
}

// Answer is the result of one question.
type Answer struct {
	Question string        `json:"question"`
	Text     string        `json:"answer"`
	Model    string        `json:"model"`
	Bundle   domain.Bundle `json:"context"`
}

// NewFactory returns an LLM factory with every OpenAI-compatible preset
// registered.
func NewFactory(model string) *llm.ProviderFactory {
	factory := llm.NewFactory()
	for name := range llm.KnownProviders {
		name := name
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			return openai.New(openai.Config{
				Name:       name,
				APIKey:     c.APIKey,
				BaseURL:    c.BaseURL,
				Model:      model,
				EmbedModel: c.EmbedModel,
			}), nil
		})
	}
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, errors.New("custom provider requires llm.base_url")
		}
		return openai.New(openai.Config{Name: "custom", APIKey: c.APIKey, BaseURL: c.BaseURL, Model: model, EmbedModel: c.EmbedModel}), nil
	})
	return factory
}

// NewProvider builds the configured LLM backend without touching any
// store.
func NewProvider(cfg *config.Config) (llm.Provider, error) {
	p, err := NewFactory(cfg.LLM.Model).Create(llm.ProviderConfig{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		EmbedModel:        cfg.Embedding.Model,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return p, nil
}

// New builds the RetrievalContext from cfg and ensures each store's
// collection or schema. A store that cannot be prepared is an error only
// with opts.RequireStores; otherwise it is recorded in StoreErrors and
// retrieval degrades to the remaining source. Model resolution failure is
// never an error: it is kept in ModelErr so ingestion still works and
// answering refuses with remediation text.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (_ *RetrievalContext, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Register()

	rc := &RetrievalContext{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rc.Close(context.Background())
		}
	}()

	rc.Provider = opts.Provider
	if rc.Provider == nil {
		rc.Provider, err = NewProvider(cfg)
		if err != nil {
			return nil, err
		}
	}
	if lister, ok := rc.Provider.(llm.ModelLister); ok {
		rc.checks = append(rc.checks, Check{Name: "llm", Kind: "llm", Fn: func(ctx context.Context) error {
			_, err := lister.ListModels(ctx)
			return err
		}})
	}

	embedder, err := rc.buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	if err := rc.buildVector(cfg, embedder); err != nil {
		return nil, err
	}
	if err := rc.buildGraph(cfg); err != nil {
		return nil, err
	}

	setupTimeout := opts.StoreSetupTimeout
	if setupTimeout <= 0 {
		setupTimeout = DefaultStoreSetupTimeout
	}
	if err := rc.prepare(ctx, domain.StoreVector, setupTimeout, rc.Vector.EnsureCollection, opts.RequireStores); err != nil {
		return nil, err
	}
	if err := rc.prepare(ctx, domain.StoreGraph, setupTimeout, rc.Graph.EnsureSchema, opts.RequireStores); err != nil {
		return nil, err
	}

	if cfg.Ingest.CorpusDir != "" {
		rc.Corpus, err = corpus.Open(cfg.Ingest.CorpusDir)
		if err != nil {
			return nil, err
		}
	}

	ingestOpts := []ingest.Option{ingest.WithLogger(logger), ingest.WithWriteTimeout(cfg.Ingest.WriteTimeout)}
	if opts.WithLedger && cfg.Ingest.LedgerPath != "" {
		rc.Ledger, err = ledger.Open(cfg.Ingest.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("opening ingestion ledger: %w", err)
		}
		rc.closers = append(rc.closers, func(context.Context) error { return rc.Ledger.Close() })
		ingestOpts = append(ingestOpts, ingest.WithRecorder(rc.Ledger))
	}
	rc.Coordinator = ingest.New(rc.Vector, rc.Graph, ingestOpts...)

	rc.Retriever = retrieve.New(rc.Vector, rc.Graph, retrieve.Config{
		VectorK:       cfg.Retrieval.VectorK,
		GraphK:        cfg.Retrieval.GraphK,
		MaxPassages:   cfg.Retrieval.MaxPassages,
		SourceTimeout: cfg.Retrieval.SourceTimeout,
	}, logger)

	if !opts.SkipModel {
		rc.resolveModel(ctx, cfg)
	}
	rc.Generator = answer.New(rc.Provider, rc.Model,
		answer.WithSystemPrompt(cfg.LLM.SystemPrompt),
		answer.WithTemperature(cfg.LLM.Temperature),
		answer.WithMaxTokens(cfg.LLM.MaxTokens),
		answer.WithLogger(logger),
	)
	return rc, nil
}

func (rc *RetrievalContext) buildEmbedder(cfg *config.Config) (vector.Embedder, error) {
	if cfg.Embedding.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding.dimension must be positive", domain.ErrValidation)
	}
	var embedder vector.Embedder = rc.Provider
	if cfg.Embedding.Model == HashEmbeddingModel {
		embedder = vectormem.NewHashEmbedder(cfg.Embedding.Dimension)
	}
	if !cfg.Cache.Enabled {
		return embedder, nil
	}

	store, err := embcache.NewRedisStore(embcache.RedisConfig{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
		TTL:      cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting embedding cache: %w", err)
	}
	rc.closers = append(rc.closers, func(context.Context) error { store.Close(); return nil })
	rc.checks = append(rc.checks, Check{Name: "redis", Kind: "cache", Fn: store.Ping})
	return embcache.New(embedder, store, cfg.Embedding.Model, metrics.EmbeddingCacheTotal, rc.Logger), nil
}

func (rc *RetrievalContext) buildVector(cfg *config.Config, embedder vector.Embedder) error {
	var repo vector.Repository
	switch cfg.Vector.Backend {
	case "memory":
		repo = vectormem.New()
	case "qdrant", "":
		q, err := vectorqdrant.New(vectorqdrant.Config{
			Host:       cfg.Vector.Host,
			Port:       cfg.Vector.Port,
			Collection: cfg.Vector.Collection,
		})
		if err != nil {
			return fmt.Errorf("connecting qdrant: %w", err)
		}
		rc.checks = append(rc.checks, Check{Name: "qdrant", Kind: "database", Fn: q.Ping})
		repo = q
	default:
		return fmt.Errorf("%w: unknown vector backend %q", domain.ErrValidation, cfg.Vector.Backend)
	}

	rc.Vector = vector.NewIndex(embedder, repo, cfg.Embedding.Dimension, vector.WithLogger(rc.Logger))
	rc.closers = append(rc.closers, func(context.Context) error { return rc.Vector.Close() })
	return nil
}

func (rc *RetrievalContext) buildGraph(cfg *config.Config) error {
	var repo graph.Repository
	switch cfg.Graph.Backend {
	case "memory":
		repo = graphmem.New()
	case "neo4j", "":
		n, err := graphneo4j.New(graphneo4j.Config{
			URI:      cfg.Graph.URI,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
		})
		if err != nil {
			return fmt.Errorf("connecting neo4j: %w", err)
		}
		rc.checks = append(rc.checks, Check{Name: "neo4j", Kind: "database", Fn: n.Ping})
		repo = n
	default:
		return fmt.Errorf("%w: unknown graph backend %q", domain.ErrValidation, cfg.Graph.Backend)
	}

	rc.Graph = graph.NewIndex(repo, rc.Logger)
	rc.closers = append(rc.closers, rc.Graph.Close)
	return nil
}

// prepare runs a store's startup setup. Failures are fatal only when
// required.
func (rc *RetrievalContext) prepare(ctx context.Context, store string, timeout time.Duration, ensure func(context.Context) error, required bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := ensure(ctx)
	if err == nil {
		return nil
	}
	if required {
		return err
	}
	if rc.StoreErrors == nil {
		rc.StoreErrors = make(map[string]error)
	}
	rc.StoreErrors[store] = err
	rc.Logger.Warn("store unavailable at startup, queries will degrade",
		zap.String("store", store), zap.Error(err))
	return nil
}

func (rc *RetrievalContext) resolveModel(ctx context.Context, cfg *config.Config) {
	lister, ok := rc.Provider.(llm.ModelLister)
	if !ok {
		// Backends that cannot enumerate models are trusted with the
		// configured name.
		if cfg.LLM.Model == "" {
			rc.ModelErr = &domain.ModelError{Reason: "llm.model is not set", Remediation: llm.DefaultPullHint}
			return
		}
		rc.Model = cfg.LLM.Model
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	rc.Model, rc.ModelErr = llm.ResolveModel(ctx, lister, cfg.LLM.Model, cfg.LLM.ModelFamily)
	if rc.ModelErr != nil {
		rc.Logger.Warn("no answer model available", zap.Error(rc.ModelErr))
		return
	}
	rc.Logger.Info("answer model resolved", zap.String("model", rc.Model))
}

// Checks returns the connectivity probes for the configured backends.
func (rc *RetrievalContext) Checks() []Check {
	return append([]Check(nil), rc.checks...)
}

// Retrieve returns the context bundle for question without calling the
// model.
func (rc *RetrievalContext) Retrieve(ctx context.Context, question string) domain.Bundle {
	return rc.Retriever.Retrieve(ctx, question)
}

// Answer retrieves context for question and asks the resolved model. It
// fails with domain.ErrModelUnavailable before touching any store when no
// model was resolved.
func (rc *RetrievalContext) Answer(ctx context.Context, question string) (Answer, error) {
	if rc.ModelErr != nil {
		return Answer{}, rc.ModelErr
	}
	bundle := rc.Retriever.Retrieve(ctx, question)
	for store, err := range bundle.SourceErrors {
		rc.Logger.Warn("retrieval degraded", zap.String("store", store), zap.Error(err))
	}
	text, err := rc.Generator.Generate(ctx, question, bundle)
	if err != nil {
		return Answer{Question: question, Model: rc.Model, Bundle: bundle}, err
	}
	return Answer{Question: question, Text: text, Model: rc.Model, Bundle: bundle}, nil
}

// IngestCorpus ingests every snapshot in the corpus directory. Unreadable
// snapshots are counted as skipped.
func (rc *RetrievalContext) IngestCorpus(ctx context.Context) (ingest.Report, error) {
	if rc.Corpus == nil {
		return ingest.Report{}, fmt.Errorf("%w: ingest.corpus_dir is not set", domain.ErrValidation)
	}
	recs, bad, err := rc.Corpus.Records()
	if err != nil {
		return ingest.Report{}, err
	}
	var skipped []ingest.Result
	for _, b := range bad {
		skipped = append(skipped, rc.Coordinator.Skip(ctx, b.ID, b.Err))
	}
	report := rc.Coordinator.IngestAll(ctx, recs)
	report = report.Merge(ingest.Summarize(skipped))
	return report, nil
}

// Close releases every client in reverse order of creation.
func (rc *RetrievalContext) Close(ctx context.Context) error {
	var errs []error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rc.closers = nil
	return errors.Join(errs...)
}
