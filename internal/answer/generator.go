// Package answer turns a question and its retrieved context into a model
// answer.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/llm"
	"github.com/efebarandurmaz/hybridrag/internal/metrics"
	"github.com/efebarandurmaz/hybridrag/internal/observability"
)

// DefaultSystemPrompt frames the model for the autism research corpus.
const DefaultSystemPrompt = "You are a helpful assistant summarizing autism research."

// Generator asks a language model to answer from a context bundle.
type Generator struct {
	provider    llm.Provider
	model       string
	system      string
	temperature *float64
	maxTokens   *int
	logger      *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithSystemPrompt overrides DefaultSystemPrompt. An empty string keeps the
// default.
func WithSystemPrompt(s string) Option {
	return func(g *Generator) {
		if s != "" {
			g.system = s
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = &t }
}

// WithMaxTokens caps the completion length. Values <= 0 are ignored.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = &n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a generator bound to a resolved model name.
func New(provider llm.Provider, model string, opts ...Option) *Generator {
	g := &Generator{
		provider: provider,
		model:    model,
		system:   DefaultSystemPrompt,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// Model returns the model the generator was bound to.
func (g *Generator) Model() string { return g.model }

// BuildPrompt renders the user message for a question and its context.
func BuildPrompt(question string, bundle domain.Bundle) string {
	return fmt.Sprintf("Question: %s\n\nContext:\n%s", question, bundle.Serialize())
}

// Generate answers question from bundle. Provider failures are reported as
// domain.ErrModelUnavailable and an empty completion as domain.ErrNoAnswer.
func (g *Generator) Generate(ctx context.Context, question string, bundle domain.Bundle) (string, error) {
	if g.provider == nil || g.model == "" {
		metrics.LLMRequestsTotal.WithLabelValues("unavailable").Inc()
		return "", &domain.ModelError{Reason: "no model resolved", Remediation: llm.DefaultPullHint}
	}

	ctx, span := observability.StartLLMSpan(ctx, g.provider.Name(), g.model)
	defer span.End()

	prompt := llm.NewUserPrompt(g.system, BuildPrompt(question, bundle))
	opts := &llm.RequestOptions{Model: g.model, Temperature: g.temperature, MaxTokens: g.maxTokens}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, prompt, opts)
	if err != nil {
		observability.RecordError(span, err)
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		g.logger.Warn("completion failed", zap.String("model", g.model), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, g.model, err)
	}
	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(start))

	text := llm.StripThinkingTags(resp.Content)
	if text == "" {
		observability.RecordError(span, domain.ErrNoAnswer)
		metrics.LLMRequestsTotal.WithLabelValues("empty").Inc()
		return "", domain.ErrNoAnswer
	}

	metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()
	g.logger.Debug("answer generated",
		zap.String("model", g.model),
		zap.Int("passages", len(bundle.Passages)),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}
