package stripe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

func newTestVerifier() *WebhookVerifier {
	return NewWebhookVerifier(Config{WebhookSecret: testWebhookSecret}, zap.NewNop())
}

func eventPayload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_123",
		"object": "event",
		"api_version": "2020-08-27",
		"created": 1700000000,
		"type": %q,
		"data": {"object": %s}
	}`, eventType, object))
}

func sign(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}

func TestWebhookVerifier_Verify(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		object    string
		want      provider.Event
	}{
		{
			name:      "payment succeeded",
			eventType: "payment_intent.succeeded",
			object:    `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`,
			want:      provider.PaymentSucceeded{GatewayPaymentID: "pi_1"},
		},
		{
			name:      "payment failed with reason",
			eventType: "payment_intent.payment_failed",
			object:    `{"id":"pi_1","object":"payment_intent","last_payment_error":{"message":"Your card was declined."}}`,
			want:      provider.PaymentFailed{GatewayPaymentID: "pi_1", Reason: "Your card was declined."},
		},
		{
			name:      "payment failed without reason",
			eventType: "payment_intent.payment_failed",
			object:    `{"id":"pi_1","object":"payment_intent"}`,
			want:      provider.PaymentFailed{GatewayPaymentID: "pi_1", Reason: "Unknown error"},
		},
		{
			name:      "payment canceled",
			eventType: "payment_intent.canceled",
			object:    `{"id":"pi_1","object":"payment_intent","cancellation_reason":"abandoned"}`,
			want:      provider.PaymentCanceled{GatewayPaymentID: "pi_1", Reason: "abandoned"},
		},
		{
			name:      "charge refunded joins on payment intent",
			eventType: "charge.refunded",
			object:    `{"id":"ch_1","object":"charge","payment_intent":"pi_1","amount_refunded":1250,"currency":"usd"}`,
			want: provider.ChargeRefunded{
				GatewayPaymentID: "pi_1",
				ChargeID:         "ch_1",
				RefundedTotal:    decimal.New(1250, -2),
			},
		},
		{
			name:      "charge refunded without intent falls back to charge id",
			eventType: "charge.refunded",
			object:    `{"id":"ch_1","object":"charge","amount_refunded":500,"currency":"jpy"}`,
			want: provider.ChargeRefunded{
				GatewayPaymentID: "ch_1",
				ChargeID:         "ch_1",
				RefundedTotal:    decimal.New(500, 0),
			},
		},
		{
			name:      "dispute created",
			eventType: "charge.dispute.created",
			object:    `{"id":"dp_1","object":"dispute","charge":"ch_1","payment_intent":"pi_1","reason":"fraudulent"}`,
			want:      provider.DisputeOpened{GatewayPaymentID: "pi_1", DisputeID: "dp_1", Reason: "fraudulent"},
		},
		{
			name:      "review opened",
			eventType: "review.opened",
			object:    `{"id":"prv_1","object":"review","charge":"ch_1","reason":"rule"}`,
			want:      provider.ReviewOpened{GatewayPaymentID: "ch_1", ReviewID: "prv_1", Reason: "rule"},
		},
		{
			name:      "unrecognized type",
			eventType: "customer.created",
			object:    `{"id":"cus_1","object":"customer"}`,
			want:      provider.Unrecognized{Type: "customer.created"},
		},
	}

	verifier := newTestVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := eventPayload(tt.eventType, tt.object)

			event, err := verifier.Verify(payload, sign(payload, testWebhookSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, "evt_123", event.ID)
			assert.Equal(t, tt.eventType, event.Type)
			assert.Equal(t, time.Unix(1700000000, 0).UTC(), event.Created)
			assert.Equal(t, payload, event.Payload)

			if refunded, ok := tt.want.(provider.ChargeRefunded); ok {
				got, ok := event.Event.(provider.ChargeRefunded)
				require.True(t, ok)
				assert.Equal(t, refunded.GatewayPaymentID, got.GatewayPaymentID)
				assert.Equal(t, refunded.ChargeID, got.ChargeID)
				assert.True(t, refunded.RefundedTotal.Equal(got.RefundedTotal))
				return
			}
			assert.Equal(t, tt.want, event.Event)
		})
	}
}

func TestWebhookVerifier_Verify_Rejects(t *testing.T) {
	verifier := newTestVerifier()
	payload := eventPayload("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		want      error
	}{
		{"missing signature", payload, "", domainErrors.ErrSignatureInvalid},
		{"wrong secret", payload, sign(payload, "whsec_other", time.Now()), domainErrors.ErrSignatureInvalid},
		{"expired signature", payload, sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)), domainErrors.ErrSignatureInvalid},
		{"tampered body", append([]byte(" "), payload...), sign(payload, testWebhookSecret, time.Now()), domainErrors.ErrSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := verifier.Verify(tt.payload, tt.signature)
			assert.Nil(t, event)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestWebhookVerifier_Verify_UndecodableSignedPayload(t *testing.T) {
	verifier := newTestVerifier()

	t.Run("object of the wrong shape", func(t *testing.T) {
		payload := eventPayload("payment_intent.succeeded", `{"id":123,"object":"payment_intent"}`)

		event, err := verifier.Verify(payload, sign(payload, testWebhookSecret, time.Now()))

		require.NoError(t, err)
		assert.Equal(t, "evt_123", event.ID)
		assert.Equal(t, "payment_intent.succeeded", event.Type)
		assert.Equal(t, provider.Unrecognized{Type: "payment_intent.succeeded"}, event.Event)
		assert.True(t, errors.Is(event.DecodeErr, domainErrors.ErrMalformedEvent))
	})

	t.Run("body that is not json", func(t *testing.T) {
		payload := []byte("not json")

		event, err := verifier.Verify(payload, sign(payload, testWebhookSecret, time.Now()))

		require.NoError(t, err)
		assert.Empty(t, event.ID)
		assert.True(t, errors.Is(event.DecodeErr, domainErrors.ErrMalformedEvent))
	})
}

func TestWebhookVerifier_Decode(t *testing.T) {
	verifier := newTestVerifier()

	payload := eventPayload("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)
	event, err := verifier.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, provider.PaymentSucceeded{GatewayPaymentID: "pi_1"}, event.Event)

	_, err = verifier.Decode([]byte("{"))
	assert.True(t, errors.Is(err, domainErrors.ErrMalformedEvent))

	_, err = verifier.Decode([]byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`))
	assert.True(t, errors.Is(err, domainErrors.ErrMalformedEvent))
}
