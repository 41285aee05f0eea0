package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// ApplyVaultSecrets overlays credentials stored in a Vault KV v2 secret.
// It is a no-op when no Vault address is configured. Keys that are
// missing from the secret leave the current value untouched.
func ApplyVaultSecrets(ctx context.Context, cfg *Config) error {
	if cfg.Vault.Address == "" {
		return nil
	}
	vc := api.DefaultConfig()
	vc.Address = cfg.Vault.Address
	client, err := api.NewClient(vc)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)

	secret, err := client.Logical().ReadWithContext(ctx, cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s from vault: %w", cfg.Vault.Path, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("vault secret %s not found", cfg.Vault.Path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("vault secret %s: invalid secret format", cfg.Vault.Path)
	}

	overlay(&cfg.Exchange.APIKey, data, "api_key")
	overlay(&cfg.Exchange.SecretKey, data, "secret_key")
	overlay(&cfg.Mail.Password, data, "smtp_password")
	overlay(&cfg.API.JWTSecret, data, "jwt_secret")
	return nil
}

func overlay(dst *string, data map[string]interface{}, key string) {
	if v, ok := data[key].(string); ok && v != "" {
		*dst = v
	}
}
