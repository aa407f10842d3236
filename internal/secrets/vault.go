package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig configures the HashiCorp Vault KV v2 provider.
type VaultConfig struct {
	Address    string
	Token      string
	MountPath  string // default "secret"
	SecretPath string // default "hybridrag"
	Timeout    time.Duration
}

// VaultProvider reads secrets from one KV v2 path.
type VaultProvider struct {
	cfg VaultConfig
	kv  *vault.KVv2
}

// NewVaultProvider validates cfg, fills defaults and builds the client.
func NewVaultProvider(cfg VaultConfig) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = "hybridrag"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, fmt.Errorf("vault config: %w", vcfg.Error)
	}
	vcfg.Address = cfg.Address
	vcfg.Timeout = cfg.Timeout

	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultProvider{cfg: cfg, kv: client.KVv2(cfg.MountPath)}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Get(ctx context.Context, key Key) (string, error) {
	secret, err := p.kv.Get(ctx, p.cfg.SecretPath)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", fmt.Errorf("%w: vault path %s", ErrNotFound, p.cfg.SecretPath)
	}
	if err != nil {
		return "", fmt.Errorf("vault read: %w", err)
	}

	val, ok := secret.Data[string(key)]
	if !ok || val == nil {
		return "", fmt.Errorf("%w: %s in vault", ErrNotFound, key)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprint(val), nil
}
