package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != 60 {
		t.Fatalf("expected 60 RPM, got %d", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 3 {
		t.Fatalf("expected burst 3, got %d", cfg.BurstSize)
	}
}

func TestRateLimitProvider_Name(t *testing.T) {
	p := NewRateLimitProvider(&mockTestProvider{name: "test-llm"}, nil)
	if p.Name() != "test-llm" {
		t.Fatalf("expected test-llm, got %s", p.Name())
	}
}

func TestRateLimitProvider_BurstAllowed(t *testing.T) {
	p := NewRateLimitProvider(&mockTestProvider{name: "test"}, &RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
			t.Fatalf("request %d within burst failed: %v", i, err)
		}
	}
}

func TestRateLimitProvider_SharedAcrossOperations(t *testing.T) {
	p := NewRateLimitProvider(&mockTestProvider{name: "test", models: []string{"m"}}, &RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         2,
	})

	ctx := context.Background()
	if _, err := p.Embed(ctx, []string{"a"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := p.ListModels(ctx); err != nil {
		t.Fatalf("list models: %v", err)
	}

	// Bucket is drained; the next call would wait ~60s.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Complete(short, &Prompt{}, nil); err == nil {
		t.Fatal("expected rate limit error once the bucket is empty")
	}
}

func TestRateLimitProvider_ContextCancellation(t *testing.T) {
	p := NewRateLimitProvider(&mockTestProvider{name: "test"}, &RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, &Prompt{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimitProvider_UnlimitedRequests(t *testing.T) {
	p := NewRateLimitProvider(&mockTestProvider{name: "test"}, &RateLimitConfig{
		RequestsPerMinute: 0,
		BurstSize:         1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 50; i++ {
		if _, err := p.Complete(ctx, &Prompt{}, nil); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
}

func TestWithRateLimit(t *testing.T) {
	if WithRateLimit(nil, nil) != nil {
		t.Fatal("expected nil for nil provider")
	}
	p := WithRateLimit(&mockTestProvider{name: "test"}, nil)
	if _, ok := p.(*RateLimitProvider); !ok {
		t.Fatalf("expected *RateLimitProvider, got %T", p)
	}
}
