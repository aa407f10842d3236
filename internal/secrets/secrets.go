// Package secrets resolves credentials that are left out of the config
// file: the LLM API key and the Neo4j and Redis passwords.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/efebarandurmaz/hybridrag/internal/config"
)

// Key identifies one credential.
type Key string

const (
	KeyLLMAPIKey     Key = "openai_api_key"
	KeyGraphPassword Key = "neo4j_password"
	KeyCachePassword Key = "redis_password"
)

// DefaultEnvPrefix is tried before the bare variable name.
const DefaultEnvPrefix = "HYBRIDRAG_"

// ErrNotFound is returned when no backend holds the key.
var ErrNotFound = errors.New("secret not found")

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key Key) (string, error)
	Name() string
}

// Manager reads from the configured backend and falls back to the
// environment. Resolved values are cached for the life of the manager.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[Key]string
}

// NewManager builds the backend named by cfg.Provider.
func NewManager(cfg config.SecretsConfig) (*Manager, error) {
	env := NewEnvProvider(DefaultEnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "env", "":
		primary = env
	case "file":
		p, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		primary = p
	case "vault":
		p, err := NewVaultProvider(VaultConfig{
			Address:    cfg.VaultAddr,
			Token:      cfg.VaultToken,
			MountPath:  cfg.VaultMount,
			SecretPath: cfg.VaultPath,
		})
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		primary = p
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	m := &Manager{primary: primary, cache: make(map[Key]string)}
	if primary != env {
		m.fallback = env
	}
	return m, nil
}

// Name returns the primary backend name.
func (m *Manager) Name() string { return m.primary.Name() }

// Get returns the value for key from the primary backend, then the
// environment. A backend failure other than a miss is reported when the
// fallback has nothing either.
func (m *Manager) Get(ctx context.Context, key Key) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	val, primaryErr := m.primary.Get(ctx, key)
	if primaryErr == nil && val != "" {
		m.store(key, val)
		return val, nil
	}
	if m.fallback != nil {
		if v, err := m.fallback.Get(ctx, key); err == nil && v != "" {
			m.store(key, v)
			return v, nil
		}
	}
	if primaryErr != nil && !errors.Is(primaryErr, ErrNotFound) {
		return "", fmt.Errorf("%s: %w", m.primary.Name(), primaryErr)
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// GetOrDefault returns the value for key, or def when it cannot be
// resolved.
func (m *Manager) GetOrDefault(ctx context.Context, key Key, def string) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		return def
	}
	return val
}

func (m *Manager) store(key Key, val string) {
	m.mu.Lock()
	m.cache[key] = val
	m.mu.Unlock()
}

// Apply fills the credential fields of cfg that are still empty. Values
// already present in cfg win. Credentials for backends that are not in
// use are not looked up.
func Apply(ctx context.Context, m *Manager, cfg *config.Config) error {
	fields := []struct {
		key    Key
		dst    *string
		needed bool
	}{
		{KeyLLMAPIKey, &cfg.LLM.APIKey, true},
		{KeyGraphPassword, &cfg.Graph.Password, cfg.Graph.Backend == "neo4j"},
		{KeyCachePassword, &cfg.Cache.Password, cfg.Cache.Enabled},
	}
	for _, f := range fields {
		if *f.dst != "" || !f.needed {
			continue
		}
		val, err := m.Get(ctx, f.key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f.key, err)
		}
		*f.dst = val
	}
	return nil
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider looks up PREFIX+KEY first, then KEY.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key Key) (string, error) {
	name := strings.ToUpper(string(key))
	if p.prefix != "" {
		if val := os.Getenv(p.prefix + name); val != "" {
			return val, nil
		}
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: env %s", ErrNotFound, name)
}
