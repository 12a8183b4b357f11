package repository

import (
	"context"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// WebhookEventRepository records verified webhook deliveries.
type WebhookEventRepository interface {
	// SaveEvent inserts the event unless one with the same gateway event id
	// exists. It returns the stored row and whether it was newly created.
	SaveEvent(ctx context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error)
	GetEvent(ctx context.Context, gatewayEventID string) (*model.WebhookEvent, error)
	MarkProcessed(ctx context.Context, gatewayEventID string) error
	MarkFailed(ctx context.Context, gatewayEventID string, cause error) error
	// GetRetryableEvents returns failed events whose next retry is due.
	GetRetryableEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
