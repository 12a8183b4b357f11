package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog records one applied payment status transition.
type AuditLog struct {
	ID               int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID        int64         `gorm:"not null;index" json:"payment_id"`
	UserID           uuid.UUID     `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	GatewayPaymentID string        `gorm:"column:gateway_payment_id;not null;size:255;index" json:"gateway_payment_id"`
	Action           string        `gorm:"not null;size:50" json:"action"`
	FromStatus       PaymentStatus `gorm:"size:20;not null" json:"from_status"`
	ToStatus         PaymentStatus `gorm:"size:20;not null" json:"to_status"`
	NewValues        datatypes.JSONMap         `gorm:"type:jsonb" json:"new_values,omitempty"`
	CreatedAt        time.Time     `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "payment_audit_log"
}
