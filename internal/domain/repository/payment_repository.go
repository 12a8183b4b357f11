package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// StatusUpdate is the outcome of a conditional status change.
type StatusUpdate struct {
	// Payment is the row as persisted after the attempt.
	Payment *model.Payment
	// From is the status the row had when the attempt was evaluated.
	From model.PaymentStatus
	// Applied is false when the change was a no-op: the row already had the
	// target status or the target is not a forward edge from From.
	Applied bool
}

// PaymentRepository persists payments keyed by their gateway payment id.
// Every status write is a compare-and-swap on the current status.
type PaymentRepository interface {
	// Create inserts a new payment. It fails with ErrInvalidAmount for a
	// non-positive amount and ErrDuplicateKey when the gateway id exists.
	Create(ctx context.Context, payment *model.Payment) error
	// GetByGatewayID returns ErrUnknownPayment when no row matches.
	GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*model.Payment, error)
	// UpdateStatus moves the payment to status when that is a forward edge.
	UpdateStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) (*StatusUpdate, error)
	// ApplyRefund marks the payment REFUNDED and raises RefundedAmount to
	// refundedTotal if that is larger than what is recorded.
	ApplyRefund(ctx context.Context, gatewayPaymentID string, refundedTotal decimal.Decimal) (*StatusUpdate, error)
	// ListByUser returns a user's payments, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error)
	// ListStale returns payments in status last updated before olderThan, oldest first.
	ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.Payment, error)
	// Touch bumps UpdatedAt if the payment is still in status, moving it to
	// the back of ListStale's order.
	Touch(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) error
}
