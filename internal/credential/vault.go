package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/haven/internal/store"
)

// IsSecretKey reports whether a configuration key holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.HasSuffix(k, "api_key") || strings.HasSuffix(k, "token") || strings.HasSuffix(k, "secret")
}

// Vault stores configuration values, encrypting the ones named by
// IsSecretKey.
type Vault struct {
	store store.ConfigStore
	m     *Manager
}

func NewVault(s store.ConfigStore, m *Manager) *Vault {
	return &Vault{store: s, m: m}
}

func (v *Vault) Set(ctx context.Context, key, value string) error {
	if IsSecretKey(key) {
		enc, err := v.m.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", key, err)
		}
		value = enc
	}
	return v.store.SetConfig(ctx, key, value)
}

// Get returns the plaintext value, or "" when unset.
func (v *Vault) Get(ctx context.Context, key string) (string, error) {
	raw, err := v.store.GetConfig(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := v.m.Decrypt(raw)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, nil
}

// Display returns the value for printing: secrets are masked.
func (v *Vault) Display(ctx context.Context, key string) (string, error) {
	val, err := v.Get(ctx, key)
	if err != nil || val == "" || !IsSecretKey(key) {
		return val, err
	}
	return MaskSecret(val), nil
}
