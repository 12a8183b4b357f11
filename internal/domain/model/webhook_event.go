package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookEvent is a verified gateway webhook delivery, kept so redeliveries
// are not dispatched twice and failed dispatches can be replayed.
type WebhookEvent struct {
	ID                 int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	GatewayEventID     string        `gorm:"column:gateway_event_id;uniqueIndex;not null;size:255" json:"gateway_event_id"`
	Platform           Platform      `gorm:"size:20;not null" json:"platform"`
	EventType          string        `gorm:"not null;size:100;index" json:"event_type"`
	GatewayPaymentID   string        `gorm:"column:gateway_payment_id;size:255;index" json:"gateway_payment_id,omitempty"`
	Status             WebhookStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Payload            datatypes.JSONMap         `gorm:"type:jsonb;not null" json:"payload"`
	ProcessingAttempts int           `gorm:"not null;default:0" json:"processing_attempts"`
	LastError          *string       `json:"last_error,omitempty"`
	NextRetryAt        *time.Time    `json:"next_retry_at,omitempty"`
	ProcessedAt        *time.Time    `json:"processed_at,omitempty"`
	GatewayCreatedAt   *time.Time    `json:"gateway_created_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
