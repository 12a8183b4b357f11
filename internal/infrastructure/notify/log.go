package notify

import (
	"context"

	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	"go.uber.org/zap"
)

// LogObserver writes every transition to the log.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnTransition(_ context.Context, t usecase.Transition) error {
	o.logger.Info("Payment status changed",
		zap.String("gateway_payment_id", t.Payment.GatewayPaymentID),
		zap.String("user_id", t.Payment.UserID.String()),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("source", string(t.Source)),
		zap.String("amount", t.Payment.Amount.String()),
		zap.String("refunded_amount", t.Payment.RefundedAmount.String()),
		zap.Time("at", t.At))
	return nil
}
