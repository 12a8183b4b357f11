package repository

import (
	"context"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// AuditLogRepository keeps the history of payment status transitions.
type AuditLogRepository interface {
	Record(ctx context.Context, entry *model.AuditLog) error
	ListByGatewayID(ctx context.Context, gatewayPaymentID string) ([]*model.AuditLog, error)
}
