package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFactoryRegister(t *testing.T) {
	f := NewFactory()
	called := false
	f.Register("test-provider", func(cfg ProviderConfig) (Provider, error) {
		called = true
		return &mockTestProvider{name: "test-provider"}, nil
	})

	if len(f.constructors) != 1 {
		t.Fatalf("expected 1 constructor, got %d", len(f.constructors))
	}
	if _, err := f.Create(ProviderConfig{Provider: "test-provider"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("constructor was not called")
	}
}

func TestFactoryCreate_ProviderRequired(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: "ollama"}, nil
	})

	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err == nil {
			t.Fatalf("provider %q: expected error", name)
		}
		if p != nil {
			t.Fatalf("provider %q: expected nil provider", name)
		}
		if !strings.Contains(err.Error(), "ollama") {
			t.Errorf("error should list registered providers: %v", err)
		}
	}
}

func TestFactoryCreate_UnknownProvider(t *testing.T) {
	f := NewFactory()
	f.Register("provider2", func(cfg ProviderConfig) (Provider, error) { return nil, nil })
	f.Register("provider1", func(cfg ProviderConfig) (Provider, error) { return nil, nil })

	_, err := f.Create(ProviderConfig{Provider: "unknown"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "[provider1 provider2]") {
		t.Errorf("expected sorted provider list, got: %v", err)
	}
}

func TestFactoryCreate_FillsKnownBaseURL(t *testing.T) {
	f := NewFactory()
	var got ProviderConfig
	f.Register("groq", func(cfg ProviderConfig) (Provider, error) {
		got = cfg
		return &mockTestProvider{name: "groq"}, nil
	})

	if _, err := f.Create(ProviderConfig{Provider: "groq"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BaseURL != KnownProviders["groq"] {
		t.Errorf("expected base URL %q, got %q", KnownProviders["groq"], got.BaseURL)
	}

	if _, err := f.Create(ProviderConfig{Provider: "groq", BaseURL: "http://proxy:9000/v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BaseURL != "http://proxy:9000/v1" {
		t.Errorf("explicit base URL overridden: %q", got.BaseURL)
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	expectedErr := errors.New("constructor failed")
	f.Register("failing", func(cfg ProviderConfig) (Provider, error) {
		return nil, expectedErr
	})

	p, err := f.Create(ProviderConfig{Provider: "failing"})
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected constructor error, got: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil provider on error")
	}
}

func TestFactoryCreate_NoWrappingWithoutConfig(t *testing.T) {
	f := NewFactory()
	inner := &mockTestProvider{name: "inner"}
	f.Register("test", func(cfg ProviderConfig) (Provider, error) { return inner, nil })

	p, err := f.Create(ProviderConfig{Provider: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != Provider(inner) {
		t.Fatalf("expected unwrapped provider, got %T", p)
	}
}

func TestFactoryCreate_WithTimeoutWrapsRetry(t *testing.T) {
	f := NewFactory()
	inner := &mockTestProvider{name: "inner"}
	f.Register("test", func(cfg ProviderConfig) (Provider, error) { return inner, nil })

	p, err := f.Create(ProviderConfig{Provider: "test", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	retry, ok := p.(*RetryProvider)
	if !ok {
		t.Fatalf("expected RetryProvider wrapper, got %T", p)
	}
	if retry.config.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", retry.config.Timeout)
	}
}

func TestFactoryCreate_WithMaxRetriesWrapsRetry(t *testing.T) {
	f := NewFactory()
	f.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: "inner"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "test", MaxRetries: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	retry, ok := p.(*RetryProvider)
	if !ok {
		t.Fatalf("expected RetryProvider wrapper, got %T", p)
	}
	if retry.config.MaxRetries != 5 {
		t.Fatalf("expected 5 retries, got %d", retry.config.MaxRetries)
	}
}

func TestFactoryCreate_RateLimitOutermost(t *testing.T) {
	f := NewFactory()
	f.Register("test", func(cfg ProviderConfig) (Provider, error) {
		return &mockTestProvider{name: "inner"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "test", MaxRetries: 1, RequestsPerMinute: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rl, ok := p.(*RateLimitProvider)
	if !ok {
		t.Fatalf("expected RateLimitProvider wrapper, got %T", p)
	}
	if _, ok := rl.inner.(*RetryProvider); !ok {
		t.Fatalf("expected retry inside rate limiter, got %T", rl.inner)
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()

	if cfg.Provider != "ollama" {
		t.Errorf("expected ollama provider, got %q", cfg.Provider)
	}
	if cfg.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("expected 2 minute timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 max retries, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 1*time.Second {
		t.Errorf("expected 1 second retry delay, got %v", cfg.RetryDelay)
	}
}

func TestKnownProviders(t *testing.T) {
	expectedProviders := map[string]string{
		"ollama":   "http://localhost:11434/v1",
		"openai":   "https://api.openai.com/v1",
		"groq":     "https://api.groq.com/openai/v1",
		"vllm":     "http://localhost:8000/v1",
		"together": "https://api.together.xyz/v1",
	}

	if len(KnownProviders) != len(expectedProviders) {
		t.Errorf("expected %d known providers, got %d", len(expectedProviders), len(KnownProviders))
	}
	for name, expectedURL := range expectedProviders {
		if url := KnownProviders[name]; url != expectedURL {
			t.Errorf("provider %q: expected URL %q, got %q", name, expectedURL, url)
		}
	}
}

// mockTestProvider is a simple mock for testing
type mockTestProvider struct {
	name   string
	models []string
}

func (m *mockTestProvider) Name() string {
	return m.name
}

func (m *mockTestProvider) Complete(_ context.Context, _ *Prompt, _ *RequestOptions) (*Response, error) {
	return &Response{Content: "test"}, nil
}

func (m *mockTestProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (m *mockTestProvider) ListModels(_ context.Context) ([]string, error) {
	return m.models, nil
}
