package vaultsecrets

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ModelCredentials holds the per-role LLM API keys the router, reasoning,
// and risk-critic model slots need.
type ModelCredentials struct {
	RouterAPIKey     string
	ReasoningAPIKey  string
	RiskCriticAPIKey string
}

// LoadModelCredentials reads the "models" secret and fills any field the
// caller's existing ModelCredentials doesn't already have set (so an
// operator-supplied env var always wins over a stale Vault entry).
func (c *Client) LoadModelCredentials(ctx context.Context, existing ModelCredentials) (ModelCredentials, error) {
	data, err := c.GetSecret(ctx, "models")
	if err != nil {
		return existing, err
	}

	if existing.RouterAPIKey == "" {
		if v, ok := data["router_api_key"].(string); ok && v != "" {
			existing.RouterAPIKey = v
		}
	}
	if existing.ReasoningAPIKey == "" {
		if v, ok := data["reasoning_api_key"].(string); ok && v != "" {
			existing.ReasoningAPIKey = v
		}
	}
	if existing.RiskCriticAPIKey == "" {
		if v, ok := data["risk_critic_api_key"].(string); ok && v != "" {
			existing.RiskCriticAPIKey = v
		}
	}

	log.Info().Msg("loaded model credentials from vault")
	return existing, nil
}

// ProviderCredentials holds the broker and market-data provider API keys
// the fabricator's IO layer needs.
type ProviderCredentials struct {
	BrokerAPIKey    string
	BrokerSecret    string
	MarketDataKey   string
	NewsProviderKey string
}

// LoadProviderCredentials reads the "providers" secret, same
// existing-wins-over-Vault precedence as LoadModelCredentials.
func (c *Client) LoadProviderCredentials(ctx context.Context, existing ProviderCredentials) (ProviderCredentials, error) {
	data, err := c.GetSecret(ctx, "providers")
	if err != nil {
		return existing, err
	}

	if existing.BrokerAPIKey == "" {
		if v, ok := data["broker_api_key"].(string); ok && v != "" {
			existing.BrokerAPIKey = v
		}
	}
	if existing.BrokerSecret == "" {
		if v, ok := data["broker_secret"].(string); ok && v != "" {
			existing.BrokerSecret = v
		}
	}
	if existing.MarketDataKey == "" {
		if v, ok := data["market_data_key"].(string); ok && v != "" {
			existing.MarketDataKey = v
		}
	}
	if existing.NewsProviderKey == "" {
		if v, ok := data["news_provider_key"].(string); ok && v != "" {
			existing.NewsProviderKey = v
		}
	}

	log.Info().Msg("loaded provider credentials from vault")
	return existing, nil
}
