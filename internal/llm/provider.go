// Package llm defines the language-model boundary: chat completion,
// embeddings and model listing, plus retry, rate limiting and model
// resolution around any backend.
package llm

import "context"

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string
}

// ModelLister is implemented by backends that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// RequestOptions tunes a single completion call. Nil fields fall back to
// backend defaults.
type RequestOptions struct {
	Model       string
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// StatusError is returned by HTTP backends for non-2xx responses so retry
// classification does not need to parse messages.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}
