package stripe

import (
	"context"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"go.uber.org/zap"
)

// Client implements provider.Gateway on top of the Stripe API. Each Client
// carries its own key and backends.
type Client struct {
	api    *client.API
	logger *zap.Logger
}

// NewClient creates a Stripe gateway client from cfg
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripe.String(cfg.APIBaseURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	return &Client{
		api:    client.New(cfg.SecretKey, backends),
		logger: logger,
	}, nil
}

// Platform returns the platform payments made through this client belong to
func (c *Client) Platform() model.Platform {
	return model.PlatformStripe
}

// CreateIntent creates a payment intent
func (c *Client) CreateIntent(ctx context.Context, req *provider.CreateIntentRequest) (*provider.GatewayIntent, error) {
	minor, err := ToMinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		c.logger.Error("Failed to create payment intent",
			zap.String("amount", req.Amount.String()),
			zap.String("currency", req.Currency),
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err))
		return nil, translateError("create", "", err)
	}

	c.logger.Info("Payment intent created",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(intent.Status)),
		zap.Int64("amount_minor", intent.Amount))

	return toGatewayIntent(intent), nil
}

// RetrieveIntent fetches an intent with its latest charge expanded
func (c *Client) RetrieveIntent(ctx context.Context, gatewayPaymentID string) (*provider.GatewayIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	intent, err := c.api.PaymentIntents.Get(gatewayPaymentID, params)
	if err != nil {
		c.logger.Error("Failed to retrieve payment intent",
			zap.String("payment_intent_id", gatewayPaymentID),
			zap.Error(err))
		return nil, translateError("retrieve", gatewayPaymentID, err)
	}

	return toGatewayIntent(intent), nil
}

// CancelIntent cancels an intent
func (c *Client) CancelIntent(ctx context.Context, gatewayPaymentID, idempotencyKey string) (*provider.GatewayIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	intent, err := c.api.PaymentIntents.Cancel(gatewayPaymentID, params)
	if err != nil {
		c.logger.Warn("Payment intent cancel rejected",
			zap.String("payment_intent_id", gatewayPaymentID),
			zap.String("idempotency_key", idempotencyKey),
			zap.Error(err))
		return nil, translateError("cancel", gatewayPaymentID, err)
	}

	c.logger.Info("Payment intent canceled",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", string(intent.Status)))

	return toGatewayIntent(intent), nil
}

// CreateRefund refunds an intent's charge, in full when req.Amount is nil
func (c *Client) CreateRefund(ctx context.Context, req *provider.RefundRequest) (*provider.GatewayRefund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayPaymentID),
	}
	if req.Amount != nil {
		minor, err := ToMinorUnits(*req.Amount, req.Currency)
		if err != nil {
			return nil, err
		}
		params.Amount = stripe.Int64(minor)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	refund, err := c.api.Refunds.New(params)
	if err != nil {
		c.logger.Warn("Refund rejected",
			zap.String("payment_intent_id", req.GatewayPaymentID),
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(err))
		return nil, translateError("refund", req.GatewayPaymentID, err)
	}

	currency := string(refund.Currency)
	if currency == "" {
		currency = req.Currency
	}

	c.logger.Info("Refund created",
		zap.String("refund_id", refund.ID),
		zap.String("payment_intent_id", req.GatewayPaymentID),
		zap.Int64("amount_minor", refund.Amount),
		zap.String("status", string(refund.Status)))

	return &provider.GatewayRefund{
		ID:               refund.ID,
		GatewayPaymentID: req.GatewayPaymentID,
		Amount:           FromMinorUnits(refund.Amount, currency),
		Currency:         strings.ToUpper(currency),
		Status:           string(refund.Status),
	}, nil
}

func toGatewayIntent(intent *stripe.PaymentIntent) *provider.GatewayIntent {
	currency := string(intent.Currency)
	out := &provider.GatewayIntent{
		ID:           intent.ID,
		Status:       provider.IntentStatus(intent.Status),
		ClientSecret: intent.ClientSecret,
		Amount:       FromMinorUnits(intent.Amount, currency),
		Currency:     strings.ToUpper(currency),
	}

	// An unexpanded latest_charge carries only its id.
	if charge := intent.LatestCharge; charge != nil && charge.Object != "" {
		refunded := FromMinorUnits(charge.AmountRefunded, currency)
		out.AmountRefunded = &refunded
	}

	return out
}

var _ provider.Gateway = (*Client)(nil)

