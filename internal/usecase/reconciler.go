package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"go.uber.org/zap"
)

// Reconciler keeps local payment status in step with the gateway. Local
// status only moves along forward edges of the payment state machine;
// anything else is a logged no-op.
type Reconciler struct {
	payments  repository.PaymentRepository
	gateway   provider.Gateway
	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler. Observers are notified in order after
// every applied transition.
func NewReconciler(
	payments repository.PaymentRepository,
	gateway provider.Gateway,
	logger *zap.Logger,
	observers ...Observer,
) *Reconciler {
	return &Reconciler{
		payments:  payments,
		gateway:   gateway,
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Capture mirrors a succeeded intent locally as COMPLETED. It does not
// change gateway state. Capturing an already COMPLETED payment succeeds
// without a new transition.
func (r *Reconciler) Capture(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	intent, err := r.gateway.RetrieveIntent(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}

	if intent.Status != provider.IntentStatusSucceeded {
		r.logger.Info("Capture requested before payment succeeded",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("gateway_status", string(intent.Status)))
		return nil, &domainErrors.NotYetPaidError{
			GatewayPaymentID: gatewayPaymentID,
			GatewayStatus:    string(intent.Status),
		}
	}

	update, err := r.transition(ctx, gatewayPaymentID, model.PaymentStatusCompleted, SourceCapture)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownPayment) {
			r.logger.Error("Succeeded intent has no local payment",
				zap.String("gateway_payment_id", gatewayPaymentID))
		}
		return nil, err
	}

	return update.Payment, nil
}

// Cancel cancels the intent at the gateway and then locally. A gateway
// rejection leaves the local row untouched.
func (r *Reconciler) Cancel(ctx context.Context, gatewayPaymentID, nonce string) (*model.Payment, error) {
	if _, err := r.payments.GetByGatewayID(ctx, gatewayPaymentID); err != nil {
		return nil, err
	}

	key := provider.IdempotencyKey(provider.OperationCancel, gatewayPaymentID, nonce)
	if _, err := r.gateway.CancelIntent(ctx, gatewayPaymentID, key); err != nil {
		return nil, err
	}

	update, err := r.transition(ctx, gatewayPaymentID, model.PaymentStatusCanceled, SourceCancel)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownPayment) {
			return nil, r.escalate(string(provider.OperationCancel), gatewayPaymentID, err)
		}
		return nil, err
	}

	return update.Payment, nil
}

// Refund refunds amount, or everything still refundable when amount is
// nil, and marks the payment REFUNDED. RefundedAmount follows the total the
// gateway reports.
func (r *Reconciler) Refund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, nonce string) (*model.Payment, error) {
	payment, err := r.payments.GetByGatewayID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}

	if amount != nil {
		if !amount.IsPositive() {
			return nil, domainErrors.NewInvalidAmountError(*amount, "refund amount must be greater than zero")
		}
		if !model.FitsMinorUnit(*amount, payment.Currency) {
			return nil, domainErrors.NewInvalidAmountError(*amount, "refund amount has more precision than "+payment.Currency+" allows")
		}
		if remaining := payment.RefundableAmount(); amount.GreaterThan(remaining) {
			return nil, &domainErrors.InvalidAmountError{
				Amount: *amount,
				Limit:  remaining,
				Reason: "refund exceeds the refundable amount",
			}
		}
	}

	if nonce == "" {
		// a retry sees the same recorded total, a second refund a larger one
		requested := "full"
		if amount != nil {
			requested = amount.String()
		}
		nonce = payment.RefundedAmount.String() + ":" + requested
	}

	refund, err := r.gateway.CreateRefund(ctx, &provider.RefundRequest{
		GatewayPaymentID: gatewayPaymentID,
		Amount:           amount,
		Currency:         payment.Currency,
		IdempotencyKey:   provider.IdempotencyKey(provider.OperationRefund, gatewayPaymentID, nonce),
	})
	if err != nil {
		return nil, err
	}

	total := r.refundedTotal(ctx, payment, refund)

	update, err := r.payments.ApplyRefund(ctx, gatewayPaymentID, total)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownPayment) {
			return nil, r.escalate(string(provider.OperationRefund), gatewayPaymentID, err)
		}
		return nil, err
	}

	if update.Applied {
		r.notify(ctx, update, model.PaymentStatusRefunded, SourceRefund)
	} else if update.Payment.Status != model.PaymentStatusRefunded {
		r.logger.Warn("Refund succeeded at gateway but local status does not allow REFUNDED",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("status", string(update.Payment.Status)),
			zap.String("refund_id", refund.ID))
	}

	return update.Payment, nil
}

// HandleEvent applies a verified gateway event. Stale, duplicate and
// unrecognized events are logged and dropped. Only store failures are
// returned, so the event can be retried.
func (r *Reconciler) HandleEvent(ctx context.Context, event provider.Event) error {
	switch e := event.(type) {
	case provider.PaymentSucceeded:
		return r.applyEvent(ctx, e.GatewayPaymentID, model.PaymentStatusCompleted)

	case provider.PaymentFailed:
		r.logger.Info("Payment failed at gateway",
			zap.String("gateway_payment_id", e.GatewayPaymentID),
			zap.String("reason", e.Reason))
		return r.applyEvent(ctx, e.GatewayPaymentID, model.PaymentStatusFailed)

	case provider.PaymentCanceled:
		return r.applyEvent(ctx, e.GatewayPaymentID, model.PaymentStatusCanceled)

	case provider.ChargeRefunded:
		return r.applyRefundEvent(ctx, e)

	case provider.DisputeOpened:
		r.logger.Warn("Dispute opened",
			zap.String("gateway_payment_id", e.GatewayPaymentID),
			zap.String("dispute_id", e.DisputeID),
			zap.String("reason", e.Reason))
		return r.applyEvent(ctx, e.GatewayPaymentID, model.PaymentStatusChargeback)

	case provider.ReviewOpened:
		r.logger.Info("Payment placed under review",
			zap.String("gateway_payment_id", e.GatewayPaymentID),
			zap.String("review_id", e.ReviewID),
			zap.String("reason", e.Reason))
		return r.applyEvent(ctx, e.GatewayPaymentID, model.PaymentStatusOnHold)

	case provider.Unrecognized:
		r.logger.Info("Unhandled webhook event type", zap.String("type", e.Type))
		return nil
	}

	r.logger.Error("Unknown event variant", zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

func (r *Reconciler) applyEvent(ctx context.Context, gatewayPaymentID string, target model.PaymentStatus) error {
	_, err := r.transition(ctx, gatewayPaymentID, target, SourceWebhook)
	if errors.Is(err, domainErrors.ErrUnknownPayment) {
		r.logger.Warn("Webhook event for unknown payment",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("target_status", string(target)))
		return nil
	}
	return err
}

func (r *Reconciler) applyRefundEvent(ctx context.Context, e provider.ChargeRefunded) error {
	update, err := r.payments.ApplyRefund(ctx, e.GatewayPaymentID, e.RefundedTotal)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownPayment) {
			r.logger.Warn("Refund event for unknown payment",
				zap.String("gateway_payment_id", e.GatewayPaymentID),
				zap.String("charge_id", e.ChargeID))
			return nil
		}
		return err
	}

	if !update.Applied && update.Payment.Status == model.PaymentStatusPending {
		// a refunded charge was paid first; the succeeded event is late
		r.logger.Info("Refund event for pending payment, completing it first",
			zap.String("gateway_payment_id", e.GatewayPaymentID),
			zap.String("charge_id", e.ChargeID))
		if _, err := r.transition(ctx, e.GatewayPaymentID, model.PaymentStatusCompleted, SourceWebhook); err != nil {
			return err
		}
		update, err = r.payments.ApplyRefund(ctx, e.GatewayPaymentID, e.RefundedTotal)
		if err != nil {
			return err
		}
	}

	if update.Applied {
		r.notify(ctx, update, model.PaymentStatusRefunded, SourceWebhook)
	} else if update.Payment.Status != model.PaymentStatusRefunded {
		r.logger.Info("Stale refund event ignored",
			zap.String("gateway_payment_id", e.GatewayPaymentID),
			zap.String("status", string(update.Payment.Status)))
	}
	return nil
}

// transition moves the payment to target if allowed and notifies observers
// when the store applied the change.
func (r *Reconciler) transition(ctx context.Context, gatewayPaymentID string, target model.PaymentStatus, source TransitionSource) (*repository.StatusUpdate, error) {
	update, err := r.payments.UpdateStatus(ctx, gatewayPaymentID, target)
	if err != nil {
		return nil, err
	}

	switch {
	case update.Applied:
		r.notify(ctx, update, target, source)
	case update.From == target:
		r.logger.Debug("Payment already in target status",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("status", string(target)),
			zap.String("source", string(source)))
	case target == model.PaymentStatusCompleted:
		// the gateway holds the money but the local row is closed
		r.logger.Warn("Succeeded payment is in a terminal local status",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("status", string(update.From)),
			zap.String("source", string(source)),
			zap.String("escalation", "manual_reconciliation"))
	default:
		r.logger.Info("Stale transition ignored",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("from", string(update.From)),
			zap.String("to", string(target)),
			zap.String("source", string(source)))
	}

	return update, nil
}

func (r *Reconciler) notify(ctx context.Context, update *repository.StatusUpdate, target model.PaymentStatus, source TransitionSource) {
	transition := Transition{
		Payment: *update.Payment,
		From:    update.From,
		To:      target,
		Source:  source,
		At:      r.now(),
	}

	for _, observer := range r.observers {
		if err := observer.OnTransition(ctx, transition); err != nil {
			r.logger.Error("Transition observer failed",
				zap.String("gateway_payment_id", update.Payment.GatewayPaymentID),
				zap.String("to", string(target)),
				zap.Error(err))
		}
	}
}

// refundedTotal prefers the cumulative total the gateway reports for the
// charge and falls back to adding the refund to what is recorded.
func (r *Reconciler) refundedTotal(ctx context.Context, payment *model.Payment, refund *provider.GatewayRefund) decimal.Decimal {
	fallback := payment.RefundedAmount.Add(refund.Amount)

	intent, err := r.gateway.RetrieveIntent(ctx, payment.GatewayPaymentID)
	if err != nil {
		r.logger.Warn("Could not read refunded total from gateway",
			zap.String("gateway_payment_id", payment.GatewayPaymentID),
			zap.Error(err))
		return fallback
	}
	if intent.AmountRefunded == nil {
		return fallback
	}
	return *intent.AmountRefunded
}

// escalate reports a gateway mutation that has no local row to land on.
func (r *Reconciler) escalate(operation, gatewayPaymentID string, cause error) error {
	r.logger.Error("Gateway mutation succeeded but local payment is missing",
		zap.String("operation", operation),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("escalation", "manual_reconciliation"),
		zap.Error(cause))

	return &domainErrors.InconsistencyError{
		Operation:        operation,
		GatewayPaymentID: gatewayPaymentID,
		Cause:            cause,
	}
}
