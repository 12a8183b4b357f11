package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one of the gateway notifications the reconciler understands.
// The set is closed: PaymentSucceeded, PaymentFailed, PaymentCanceled,
// ChargeRefunded, DisputeOpened, ReviewOpened and Unrecognized.
type Event interface {
	// PaymentID is the gateway payment id the event refers to, empty for
	// Unrecognized.
	PaymentID() string
	sealed()
}

// PaymentSucceeded reports that the gateway confirmed the payment.
type PaymentSucceeded struct {
	GatewayPaymentID string
}

// PaymentFailed reports a failed charge attempt.
type PaymentFailed struct {
	GatewayPaymentID string
	Reason           string
}

// PaymentCanceled reports that the intent was canceled at the gateway.
type PaymentCanceled struct {
	GatewayPaymentID string
	Reason           string
}

// ChargeRefunded reports a refund of the payment's charge.
type ChargeRefunded struct {
	GatewayPaymentID string
	ChargeID         string
	// RefundedTotal is the cumulative amount refunded on the charge.
	RefundedTotal decimal.Decimal
}

// DisputeOpened reports a chargeback on the payment's charge.
type DisputeOpened struct {
	GatewayPaymentID string
	DisputeID        string
	Reason           string
}

// ReviewOpened reports that the payment was placed under review.
type ReviewOpened struct {
	GatewayPaymentID string
	ReviewID         string
	Reason           string
}

// Unrecognized is any event type outside the set above.
type Unrecognized struct {
	Type string
}

func (e PaymentSucceeded) PaymentID() string { return e.GatewayPaymentID }
func (e PaymentFailed) PaymentID() string    { return e.GatewayPaymentID }
func (e PaymentCanceled) PaymentID() string  { return e.GatewayPaymentID }
func (e ChargeRefunded) PaymentID() string   { return e.GatewayPaymentID }
func (e DisputeOpened) PaymentID() string    { return e.GatewayPaymentID }
func (e ReviewOpened) PaymentID() string     { return e.GatewayPaymentID }
func (e Unrecognized) PaymentID() string     { return "" }

func (PaymentSucceeded) sealed() {}
func (PaymentFailed) sealed()    {}
func (PaymentCanceled) sealed()  {}
func (ChargeRefunded) sealed()   {}
func (DisputeOpened) sealed()    {}
func (ReviewOpened) sealed()     {}
func (Unrecognized) sealed()     {}

// WebhookEvent is a verified, decoded webhook delivery.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Event   Event
	// Payload is the raw event body, kept for the webhook event log.
	Payload []byte
	// DecodeErr is set when the signature verified but the body could not be
	// decoded. Event is then Unrecognized and ID may be empty.
	DecodeErr error
}
