package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/efebarandurmaz/hybridrag/internal/config"
)

// ==================== EnvProvider Tests ====================

func TestEnvProvider_PrefixWins(t *testing.T) {
	t.Setenv("HYBRIDRAG_NEO4J_PASSWORD", "prefixed")
	t.Setenv("NEO4J_PASSWORD", "bare")

	val, err := NewEnvProvider(DefaultEnvPrefix).Get(context.Background(), KeyGraphPassword)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "prefixed" {
		t.Fatalf("expected 'prefixed', got %s", val)
	}
}

func TestEnvProvider_BareName(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	val, err := NewEnvProvider(DefaultEnvPrefix).Get(context.Background(), KeyLLMAPIKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "sk-test" {
		t.Fatalf("expected 'sk-test', got %s", val)
	}
}

func TestEnvProvider_NotFound(t *testing.T) {
	_, err := NewEnvProvider(DefaultEnvPrefix).Get(context.Background(), Key("nonexistent_secret_xyz"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ==================== FileProvider Tests ====================

func writeSecrets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileProvider_GetAndReload(t *testing.T) {
	path := writeSecrets(t, `{"neo4j_password":"one"}`)
	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val, _ := p.Get(context.Background(), KeyGraphPassword); val != "one" {
		t.Fatalf("expected 'one', got %q", val)
	}

	if err := os.WriteFile(path, []byte(`{"neo4j_password":"two"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if val, _ := p.Get(context.Background(), KeyGraphPassword); val != "two" {
		t.Fatalf("expected 'two', got %q", val)
	}

	if _, err := p.Get(context.Background(), KeyCachePassword); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileProvider_Errors(t *testing.T) {
	if _, err := NewFileProvider(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := NewFileProvider(writeSecrets(t, "not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

// ==================== VaultProvider Tests ====================

func TestVaultProvider_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/hybridrag" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"neo4j_password":"from-vault","redis_password":42},` +
			`"metadata":{"created_time":"2026-01-02T15:04:05Z","deletion_time":"","destroyed":false,"version":3}}}`))
	}))
	defer srv.Close()

	p, err := NewVaultProvider(VaultConfig{Address: srv.URL + "/", Token: "root"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if val, err := p.Get(ctx, KeyGraphPassword); err != nil || val != "from-vault" {
		t.Fatalf("got %q, %v", val, err)
	}
	if val, err := p.Get(ctx, KeyCachePassword); err != nil || val != "42" {
		t.Fatalf("non-string value: got %q, %v", val, err)
	}
	if _, err := p.Get(ctx, KeyLLMAPIKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	missing, _ := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "root", SecretPath: "other"})
	if _, err := missing.Get(ctx, KeyGraphPassword); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing path: expected ErrNotFound, got %v", err)
	}

	bad, _ := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "wrong"})
	if _, err := bad.Get(ctx, KeyGraphPassword); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a non-miss error, got %v", err)
	}
}

func TestVaultProvider_RequiresAddressAndToken(t *testing.T) {
	if _, err := NewVaultProvider(VaultConfig{Token: "t"}); err == nil {
		t.Fatal("expected error without address")
	}
	if _, err := NewVaultProvider(VaultConfig{Address: "http://vault"}); err == nil {
		t.Fatal("expected error without token")
	}
}

// ==================== Manager Tests ====================

func TestManager_FileFallsBackToEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "env-redis")
	m, err := NewManager(config.SecretsConfig{Provider: "file", File: writeSecrets(t, `{"neo4j_password":"file-neo4j"}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name() != "file" {
		t.Fatalf("expected 'file', got %s", m.Name())
	}
	ctx := context.Background()
	if val, _ := m.Get(ctx, KeyGraphPassword); val != "file-neo4j" {
		t.Fatalf("expected file value, got %q", val)
	}
	if val, _ := m.Get(ctx, KeyCachePassword); val != "env-redis" {
		t.Fatalf("expected env fallback, got %q", val)
	}
	if got := m.GetOrDefault(ctx, Key("missing_key_xyz"), "def"); got != "def" {
		t.Fatalf("expected default, got %q", got)
	}
}

func TestManager_CachesValues(t *testing.T) {
	t.Setenv("NEO4J_PASSWORD", "first")
	m, err := NewManager(config.SecretsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	_, _ = m.Get(ctx, KeyGraphPassword)
	t.Setenv("NEO4J_PASSWORD", "second")
	if val, _ := m.Get(ctx, KeyGraphPassword); val != "first" {
		t.Fatalf("expected cached 'first', got %q", val)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(config.SecretsConfig{Provider: "ssm"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := NewManager(config.SecretsConfig{Provider: "vault"}); err == nil {
		t.Fatal("expected error for vault without address")
	}
}

// ==================== Apply Tests ====================

func TestApply_FillsOnlyMissingAndNeeded(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("NEO4J_PASSWORD", "neo")
	t.Setenv("REDIS_PASSWORD", "redis")

	m, err := NewManager(config.SecretsConfig{Provider: "env"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := &config.Config{}
	cfg.LLM.APIKey = "sk-config"
	cfg.Graph.Backend = "neo4j"
	cfg.Cache.Enabled = false

	if err := Apply(context.Background(), m, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.LLM.APIKey != "sk-config" {
		t.Fatalf("configured key overwritten: %q", cfg.LLM.APIKey)
	}
	if cfg.Graph.Password != "neo" {
		t.Fatalf("expected graph password from env, got %q", cfg.Graph.Password)
	}
	if cfg.Cache.Password != "" {
		t.Fatalf("cache disabled, password should stay empty, got %q", cfg.Cache.Password)
	}
}

func TestApply_MissingIsNotAnError(t *testing.T) {
	m, err := NewManager(config.SecretsConfig{Provider: "file", File: writeSecrets(t, `{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := &config.Config{}
	cfg.Graph.Backend = "memory"
	if err := Apply(context.Background(), m, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
}
