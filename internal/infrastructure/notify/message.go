// Package notify fans applied payment transitions out to logs and brokers.
package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
)

// TransitionMessage is the wire form of a transition.
type TransitionMessage struct {
	MessageID        string    `json:"message_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	UserID           string    `json:"user_id"`
	Platform         string    `json:"platform"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	RefundedAmount   string    `json:"refunded_amount"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	Source           string    `json:"source"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewTransitionMessage converts a transition for publishing.
func NewTransitionMessage(t usecase.Transition) TransitionMessage {
	return TransitionMessage{
		MessageID:        uuid.NewString(),
		GatewayPaymentID: t.Payment.GatewayPaymentID,
		UserID:           t.Payment.UserID.String(),
		Platform:         string(t.Payment.Platform),
		Amount:           t.Payment.Amount.StringFixed(2),
		Currency:         t.Payment.Currency,
		RefundedAmount:   t.Payment.RefundedAmount.StringFixed(2),
		From:             string(t.From),
		To:               string(t.To),
		Source:           string(t.Source),
		OccurredAt:       t.At.UTC(),
	}
}

// RoutingKey is payment.<status> in lower case, e.g. payment.completed.
func RoutingKey(t usecase.Transition) string {
	return "payment." + strings.ToLower(string(t.To))
}
