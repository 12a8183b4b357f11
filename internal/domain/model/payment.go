package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Platform is the external gateway a payment was made through.
type Platform string

const (
	PlatformPayPal Platform = "PAYPAL"
	PlatformStripe Platform = "STRIPE"
	PlatformOther  Platform = "OTHER"
)

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformPayPal, PlatformStripe, PlatformOther:
		return true
	}
	return false
}

// Payment is a payment made through a third party gateway. Only Status and
// RefundedAmount change after creation.
type Payment struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Platform         Platform        `gorm:"size:20;not null;default:'PAYPAL'" json:"platform"`
	GatewayPaymentID string          `gorm:"column:gateway_payment_id;size:255;not null;uniqueIndex" json:"gateway_payment_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null;default:'USD'" json:"currency"`
	RefundedAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"refunded_amount"`
	Status           PaymentStatus   `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// RefundableAmount is what is left to refund.
func (p *Payment) RefundableAmount() decimal.Decimal {
	remaining := p.Amount.Sub(p.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
