package notify

import (
	"context"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	"gorm.io/datatypes"
)

// AuditObserver persists every transition to the payment audit log.
type AuditObserver struct {
	audit repository.AuditLogRepository
}

func NewAuditObserver(audit repository.AuditLogRepository) *AuditObserver {
	return &AuditObserver{audit: audit}
}

func (o *AuditObserver) OnTransition(ctx context.Context, t usecase.Transition) error {
	return o.audit.Record(ctx, &model.AuditLog{
		PaymentID:        t.Payment.ID,
		UserID:           t.Payment.UserID,
		GatewayPaymentID: t.Payment.GatewayPaymentID,
		Action:           string(t.Source),
		FromStatus:       t.From,
		ToStatus:         t.To,
		NewValues: datatypes.JSONMap{
			"status":          string(t.Payment.Status),
			"amount":          t.Payment.Amount.String(),
			"refunded_amount": t.Payment.RefundedAmount.String(),
			"currency":        t.Payment.Currency,
		},
		CreatedAt: t.At,
	})
}
