package provider

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// Gateway is the slice of a payment gateway API the reconciler depends on.
// Mutating calls take an idempotency key; replaying a key must not repeat
// the side effect at the gateway.
type Gateway interface {
	Platform() model.Platform

	// CreateIntent starts a charge attempt.
	CreateIntent(ctx context.Context, req *CreateIntentRequest) (*GatewayIntent, error)

	// RetrieveIntent fetches the intent's current state.
	RetrieveIntent(ctx context.Context, gatewayPaymentID string) (*GatewayIntent, error)

	// CancelIntent cancels the intent. It fails with ErrInvalidState when the
	// gateway reports the intent cannot be canceled.
	CancelIntent(ctx context.Context, gatewayPaymentID, idempotencyKey string) (*GatewayIntent, error)

	// CreateRefund refunds the intent's charge. A nil Amount refunds in full.
	CreateRefund(ctx context.Context, req *RefundRequest) (*GatewayRefund, error)
}

// IntentStatus is the gateway-reported state of an intent.
type IntentStatus string

const (
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusCanceled              IntentStatus = "canceled"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentStatusRequiresCapture       IntentStatus = "requires_capture"
)

// CreateIntentRequest describes a new charge attempt.
type CreateIntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest describes a refund of an intent's charge.
type RefundRequest struct {
	GatewayPaymentID string
	// Amount is nil for a full refund.
	Amount         *decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// GatewayIntent is the gateway view of a payment intent.
type GatewayIntent struct {
	ID           string
	Status       IntentStatus
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
	// AmountRefunded is the cumulative refunded total of the intent's latest
	// charge, when the gateway included it.
	AmountRefunded *decimal.Decimal
}

// GatewayRefund is the gateway view of a refund.
type GatewayRefund struct {
	ID               string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Currency         string
	Status           string
}
