// Package vaultsecrets loads the core's runtime credentials — routing/
// reasoning/risk-critic model API keys, broker and data-provider API keys —
// from HashiCorp Vault rather than bare environment variables, adapted from
// API keys and model credentials out of the environment.
package vaultsecrets

import (
	"context"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// Config holds Vault connection and authentication configuration.
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	AuthMethod string // "token", "kubernetes", "approle"
	MountPath  string // KV v2 mount, default "secret"
	SecretPath string // base path, e.g. "alphacouncil/production"
	Namespace  string // Vault Enterprise namespace
}

// FromEnv builds a Config from VAULT_* environment variables, mirroring the
// VAULT_* environment variables.
func FromEnv() Config {
	if os.Getenv("VAULT_ENABLED") != "true" {
		return Config{Enabled: false}
	}
	return Config{
		Enabled:    true,
		Address:    envOrDefault("VAULT_ADDR", "http://localhost:8200"),
		Token:      os.Getenv("VAULT_TOKEN"),
		AuthMethod: envOrDefault("VAULT_AUTH_METHOD", "token"),
		MountPath:  envOrDefault("VAULT_MOUNT_PATH", "secret"),
		SecretPath: envOrDefault("VAULT_SECRET_PATH", "alphacouncil/production"),
		Namespace:  os.Getenv("VAULT_NAMESPACE"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Client wraps the Vault API client for this core's secret reads.
type Client struct {
	client *vault.Client
	config Config
}

// New creates an authenticated Client per cfg.AuthMethod.
func New(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("vaultsecrets: vault is not enabled in configuration")
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("vaultsecrets: create client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	switch cfg.AuthMethod {
	case "token", "":
		token := cfg.Token
		if token == "" {
			token = os.Getenv("VAULT_TOKEN")
		}
		if token == "" {
			return nil, fmt.Errorf("vaultsecrets: VAULT_TOKEN not set for token authentication")
		}
		client.SetToken(token)

	case "kubernetes":
		if err := authenticateKubernetes(client, cfg); err != nil {
			return nil, fmt.Errorf("vaultsecrets: kubernetes authentication: %w", err)
		}

	case "approle":
		if err := authenticateAppRole(client); err != nil {
			return nil, fmt.Errorf("vaultsecrets: approle authentication: %w", err)
		}

	default:
		return nil, fmt.Errorf("vaultsecrets: unsupported auth method %q", cfg.AuthMethod)
	}

	log.Info().
		Str("address", cfg.Address).
		Str("auth_method", cfg.AuthMethod).
		Str("secret_path", cfg.SecretPath).
		Msg("vault client initialized")

	return &Client{client: client, config: cfg}, nil
}

// GetSecret reads the KV v2 secret at path (relative to config.SecretPath).
func (c *Client) GetSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	fullPath := fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, path)

	secret, err := c.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("vaultsecrets: read %s: %w", fullPath, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("vaultsecrets: no secret at %s", fullPath)
	}

	if data, ok := secret.Data["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return secret.Data, nil
}

// GetSecretString reads a single string field from the secret at path.
func (c *Client) GetSecretString(ctx context.Context, path, key string) (string, error) {
	data, err := c.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("vaultsecrets: key %q not found or not a string at %s", key, path)
	}
	return value, nil
}

func authenticateKubernetes(client *vault.Client, cfg Config) error {
	jwt, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/token")
	if err != nil {
		return fmt.Errorf("read service account token: %w", err)
	}

	role := os.Getenv("VAULT_K8S_ROLE")
	if role == "" {
		role = "alphacouncil"
	}

	secret, err := client.Logical().Write("auth/kubernetes/login", map[string]interface{}{
		"jwt":  string(jwt),
		"role": role,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("kubernetes auth returned no token")
	}

	client.SetToken(secret.Auth.ClientToken)
	log.Info().Str("role", role).Msg("authenticated to vault via kubernetes service account")
	return nil
}

func authenticateAppRole(client *vault.Client) error {
	roleID := os.Getenv("VAULT_ROLE_ID")
	secretID := os.Getenv("VAULT_SECRET_ID")
	if roleID == "" || secretID == "" {
		return fmt.Errorf("VAULT_ROLE_ID and VAULT_SECRET_ID must be set")
	}

	secret, err := client.Logical().Write("auth/approle/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("approle auth returned no token")
	}

	client.SetToken(secret.Auth.ClientToken)
	log.Info().Msg("authenticated to vault via approle")
	return nil
}
