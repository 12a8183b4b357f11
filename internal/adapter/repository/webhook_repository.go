package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// maxWebhookAttempts stops replaying an event after this many failures.
	maxWebhookAttempts = 10
	// pendingReplayAfter is how long an event may stay pending before it is
	// considered abandoned by the process that received it.
	pendingReplayAfter = 15 * time.Minute
)

type webhookRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookRepository creates a new webhook event repository
func NewWebhookRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookEventRepository {
	return &webhookRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent stores a webhook event unless its gateway event id is known
func (r *webhookRepository) SaveEvent(ctx context.Context, event *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	if event.Status == "" {
		event.Status = model.WebhookStatusPending
	}

	// Use ON CONFLICT to handle duplicate deliveries
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_event_id"}},
			DoNothing: true,
		}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", event.GatewayEventID),
			zap.String("event_type", event.EventType),
			zap.Error(result.Error))
		return nil, false, fmt.Errorf("failed to save webhook event: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		return event, true, nil
	}

	existing, err := r.GetEvent(ctx, event.GatewayEventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("webhook event %s vanished after conflict", event.GatewayEventID)
	}

	r.logger.Debug("Webhook event already recorded",
		zap.String("event_id", existing.GatewayEventID),
		zap.String("status", string(existing.Status)))

	return existing, false, nil
}

// GetEvent retrieves a webhook event by gateway event id, nil if unknown
func (r *webhookRepository) GetEvent(ctx context.Context, gatewayEventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent

	err := r.db.WithContext(ctx).
		Where("gateway_event_id = ?", gatewayEventID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", gatewayEventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// MarkProcessed marks a webhook event as completed
func (r *webhookRepository) MarkProcessed(ctx context.Context, gatewayEventID string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ?", gatewayEventID).
		Updates(map[string]interface{}{
			"status":        model.WebhookStatusCompleted,
			"processed_at":  &now,
			"next_retry_at": nil,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processed",
			zap.String("event_id", gatewayEventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as processed: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", gatewayEventID)
	}

	return nil
}

// MarkFailed records a failed dispatch and schedules the next attempt
func (r *webhookRepository) MarkFailed(ctx context.Context, gatewayEventID string, cause error) error {
	var event model.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("gateway_event_id = ?", gatewayEventID).
		First(&event).Error; err != nil {
		r.logger.Error("Failed to get webhook event for failure update",
			zap.String("event_id", gatewayEventID),
			zap.Error(err))
		return fmt.Errorf("failed to get webhook event: %w", err)
	}

	attempts := event.ProcessingAttempts + 1
	nextRetry := time.Now().Add(retryBackoff(attempts))
	errorMsg := cause.Error()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("gateway_event_id = ?", gatewayEventID).
		Updates(map[string]interface{}{
			"status":              model.WebhookStatusFailed,
			"processing_attempts": attempts,
			"last_error":          &errorMsg,
			"next_retry_at":       &nextRetry,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", gatewayEventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	r.logger.Warn("Webhook event processing failed",
		zap.String("event_id", gatewayEventID),
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", nextRetry),
		zap.String("error", errorMsg))

	return nil
}

// GetRetryableEvents returns failed events whose retry is due and pending
// events that were never finished, oldest first
func (r *webhookRepository) GetRetryableEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent
	now := time.Now()

	query := r.db.WithContext(ctx).
		Where("processing_attempts < ?", maxWebhookAttempts).
		Where(r.db.
			Where("status = ? AND next_retry_at <= ?", model.WebhookStatusFailed, now).
			Or("status = ? AND created_at <= ?", model.WebhookStatusPending, now.Add(-pendingReplayAfter))).
		Order("created_at ASC, id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to get retryable webhook events",
			zap.Error(err))
		return nil, fmt.Errorf("failed to get retryable webhook events: %w", err)
	}

	return events, nil
}

// retryBackoff is 5 minutes doubled per attempt, capped at a day.
func retryBackoff(attempts int) time.Duration {
	minutes := 1440
	if attempts < 9 {
		minutes = 5 * (1 << attempts)
		if minutes > 1440 {
			minutes = 1440
		}
	}
	return time.Duration(minutes) * time.Minute
}
