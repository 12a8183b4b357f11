package config

import (
	"time"

	"github.com/wekeepgrowing/crowdfund-payment/internal/infrastructure/provider/stripe"
)

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// DefaultCurrency is used when a create request omits one.
	DefaultCurrency     string       `yaml:"default_currency"`
	StripeSecretKey     string       `yaml:"stripe_secret_key"`
	StripeWebhookSecret string       `yaml:"stripe_webhook_secret"`
	Stripe              StripeConfig `yaml:"stripe"`
}

// StripeConfig tunes the Stripe client beyond the keys.
type StripeConfig struct {
	APIBaseURL        string        `yaml:"api_base_url"`
	MaxNetworkRetries int64         `yaml:"max_network_retries"`
	Timeout           time.Duration `yaml:"timeout"`
	WebhookTolerance  time.Duration `yaml:"webhook_tolerance"`
}

// GatewayConfig builds the explicit Stripe adapter config.
func (c ServiceConfig) GatewayConfig() stripe.Config {
	return stripe.Config{
		SecretKey:         c.StripeSecretKey,
		WebhookSecret:     c.StripeWebhookSecret,
		APIBaseURL:        c.Stripe.APIBaseURL,
		MaxNetworkRetries: c.Stripe.MaxNetworkRetries,
		Timeout:           c.Stripe.Timeout,
		WebhookTolerance:  c.Stripe.WebhookTolerance,
	}
}
