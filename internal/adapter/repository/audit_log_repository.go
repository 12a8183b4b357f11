package repository

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"gorm.io/gorm"
)

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) domainRepo.AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Record(ctx context.Context, entry *model.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record audit log for %s: %w", entry.GatewayPaymentID, err)
	}
	return nil
}

// ListByGatewayID returns a payment's transitions, oldest first.
func (r *auditLogRepository) ListByGatewayID(ctx context.Context, gatewayPaymentID string) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log for %s: %w", gatewayPaymentID, err)
	}
	return entries, nil
}
