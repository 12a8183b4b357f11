package stripe

import (
	"errors"
	"time"
)

// Config is everything the Stripe adapters need. It is built once at
// startup and passed to NewClient and NewWebhookVerifier.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIBaseURL overrides https://api.stripe.com, used against mock servers.
	APIBaseURL        string
	MaxNetworkRetries int64
	Timeout           time.Duration
	// WebhookTolerance is the accepted age of a webhook signature.
	WebhookTolerance time.Duration
}

// Validate checks the fields required to talk to Stripe.
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe secret key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe webhook secret is required")
	}
	return nil
}
