// Package openai implements llm.Provider for OpenAI-compatible APIs
// (Ollama, vLLM, OpenAI, Groq) using go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/efebarandurmaz/hybridrag/internal/llm"
)

const (
	defaultBaseURL    = "http://localhost:11434/v1"
	defaultEmbedModel = "all-minilm"
)

// Client implements llm.Provider and llm.ModelLister.
type Client struct {
	name       string
	model      string
	embedModel string
	client     *openai.Client
}

// Config holds the client settings.
type Config struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string // default completion model; overridden per request
	EmbedModel string
	HTTPClient *http.Client
}

// New creates an OpenAI-compatible provider.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}

	// Ollama ignores the key but go-openai always sends the header.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	} else {
		clientCfg.HTTPClient = &http.Client{Timeout: 300 * time.Second}
	}

	return &Client{
		name:       cfg.Name,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		client:     openai.NewClientWithConfig(clientCfg),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	var msgs []openai.ChatCompletionMessage
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt})
	}
	for _, m := range prompt.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: 1024,
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
		if opts.Temperature != nil {
			req.Temperature = float32(*opts.Temperature)
		}
		if opts.TopP != nil {
			req.TopP = float32(*opts.TopP)
		}
		if len(opts.StopSeqs) > 0 {
			req.Stop = opts.StopSeqs
		}
	}
	if req.Model == "" {
		return nil, errors.New("openai: no model selected")
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify("chat", err)
	}

	text, stop := "", ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		stop = string(resp.Choices[0].FinishReason)
	}

	return &llm.Response{
		Content:      text,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		StopReason:   stop,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(c.embedModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// ListModels returns installed model ids in a stable order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, classify("list models", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	sort.Strings(names)
	return names, nil
}

// classify turns go-openai errors into llm.StatusError so retry logic can
// decide on the status code.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai %s: %w", op, &llm.StatusError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    fmt.Sprintf("%d: %s", apiErr.HTTPStatusCode, apiErr.Message),
		})
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai %s: %w", op, &llm.StatusError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("%d: %s", reqErr.HTTPStatusCode, string(reqErr.Body)),
		})
	}

	return fmt.Errorf("openai %s: %w", op, err)
}

var (
	_ llm.Provider    = (*Client)(nil)
	_ llm.ModelLister = (*Client)(nil)
)
