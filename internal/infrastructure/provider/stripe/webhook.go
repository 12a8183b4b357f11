package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"go.uber.org/zap"
)

const defaultFailureReason = "Unknown error"

// WebhookVerifier implements provider.WebhookVerifier for Stripe's
// Stripe-Signature scheme.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewWebhookVerifier creates a verifier using cfg.WebhookSecret
func NewWebhookVerifier(cfg Config, logger *zap.Logger) *WebhookVerifier {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookVerifier{
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Verify authenticates payload and decodes the event it carries
func (v *WebhookVerifier) Verify(payload []byte, signature string) (*provider.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{
			Tolerance:                v.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		if isSignatureError(err) {
			v.logger.Warn("Webhook signature verification failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrSignatureInvalid, err)
		}
		v.logger.Warn("Signed webhook payload could not be parsed", zap.Error(err))
		return &provider.WebhookEvent{
			Event:     provider.Unrecognized{},
			Payload:   payload,
			DecodeErr: fmt.Errorf("%w: %v", domainErrors.ErrMalformedEvent, err),
		}, nil
	}

	return v.convert(&event, payload), nil
}

// Decode parses a payload that was authenticated when it was received
func (v *WebhookVerifier) Decode(payload []byte) (*provider.WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrMalformedEvent, err)
	}
	decoded := v.convert(&event, payload)
	if decoded.DecodeErr != nil {
		return nil, decoded.DecodeErr
	}
	return decoded, nil
}

func (v *WebhookVerifier) convert(event *stripe.Event, payload []byte) *provider.WebhookEvent {
	result := &provider.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: payload,
	}

	decoded, err := decodeEvent(event)
	if err != nil {
		v.logger.Warn("Webhook event object could not be decoded",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		result.Event = provider.Unrecognized{Type: string(event.Type)}
		result.DecodeErr = fmt.Errorf("%w: %s %s: %v", domainErrors.ErrMalformedEvent, event.Type, event.ID, err)
		return result
	}

	result.Event = decoded
	return result
}

// decodeEvent maps a Stripe event onto the closed provider.Event set.
func decodeEvent(event *stripe.Event) (provider.Event, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeObject[stripe.PaymentIntent](event)
		if err != nil {
			return nil, err
		}
		return provider.PaymentSucceeded{GatewayPaymentID: intent.ID}, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeObject[stripe.PaymentIntent](event)
		if err != nil {
			return nil, err
		}
		reason := defaultFailureReason
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		return provider.PaymentFailed{GatewayPaymentID: intent.ID, Reason: reason}, nil

	case stripe.EventTypePaymentIntentCanceled:
		intent, err := decodeObject[stripe.PaymentIntent](event)
		if err != nil {
			return nil, err
		}
		return provider.PaymentCanceled{
			GatewayPaymentID: intent.ID,
			Reason:           string(intent.CancellationReason),
		}, nil

	case stripe.EventTypeChargeRefunded:
		charge, err := decodeObject[stripe.Charge](event)
		if err != nil {
			return nil, err
		}
		return provider.ChargeRefunded{
			GatewayPaymentID: paymentIDOf(charge.PaymentIntent, charge),
			ChargeID:         charge.ID,
			RefundedTotal:    FromMinorUnits(charge.AmountRefunded, string(charge.Currency)),
		}, nil

	case stripe.EventTypeChargeDisputeCreated:
		dispute, err := decodeObject[stripe.Dispute](event)
		if err != nil {
			return nil, err
		}
		return provider.DisputeOpened{
			GatewayPaymentID: paymentIDOf(dispute.PaymentIntent, dispute.Charge),
			DisputeID:        dispute.ID,
			Reason:           string(dispute.Reason),
		}, nil

	case stripe.EventTypeReviewOpened:
		review, err := decodeObject[stripe.Review](event)
		if err != nil {
			return nil, err
		}
		return provider.ReviewOpened{
			GatewayPaymentID: paymentIDOf(review.PaymentIntent, review.Charge),
			ReviewID:         review.ID,
			Reason:           string(review.Reason),
		}, nil
	}

	return provider.Unrecognized{Type: string(event.Type)}, nil
}

func decodeObject[T any](event *stripe.Event) (*T, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("event has no data object")
	}
	var object T
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return nil, err
	}
	return &object, nil
}

// paymentIDOf joins charge-level objects to the payment intent, falling back
// to the charge id for charges made without one.
func paymentIDOf(intent *stripe.PaymentIntent, charge *stripe.Charge) string {
	if intent != nil && intent.ID != "" {
		return intent.ID
	}
	if charge != nil {
		return charge.ID
	}
	return ""
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}

var _ provider.WebhookVerifier = (*WebhookVerifier)(nil)
