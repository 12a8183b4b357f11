package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// EventHandler applies decoded gateway events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event provider.Event) error
}

// WebhookIngress authenticates webhook deliveries, records them and hands
// them to the reconciler.
type WebhookIngress struct {
	verifier provider.WebhookVerifier
	events   repository.WebhookEventRepository
	handler  EventHandler
	platform model.Platform
	logger   *zap.Logger
}

// ReplayResult counts the outcome of a replay pass.
type ReplayResult struct {
	Processed int
	Failed    int
}

// NewWebhookIngress creates a webhook ingress for one gateway platform
func NewWebhookIngress(
	verifier provider.WebhookVerifier,
	events repository.WebhookEventRepository,
	handler EventHandler,
	platform model.Platform,
	logger *zap.Logger,
) *WebhookIngress {
	return &WebhookIngress{
		verifier: verifier,
		events:   events,
		handler:  handler,
		platform: platform,
		logger:   logger,
	}
}

// Receive verifies and dispatches one delivery. A non-nil error means the
// signature was rejected and nothing was dispatched. Once verified, the
// delivery is acknowledged whatever the decode or dispatch outcome; failures
// are recorded for replay.
func (w *WebhookIngress) Receive(ctx context.Context, payload []byte, signature string) error {
	event, err := w.verifier.Verify(payload, signature)
	if err != nil {
		return err
	}

	if event.DecodeErr != nil {
		w.undecodable(ctx, event)
		return nil
	}

	w.logger.Info("Webhook event received",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("gateway_payment_id", event.Event.PaymentID()),
		zap.Time("created", event.Created))

	record, err := w.record(ctx, event)
	if err != nil {
		// dispatch anyway; transitions are idempotent
		w.logger.Error("Failed to record webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		if err := w.handler.HandleEvent(ctx, event.Event); err != nil {
			w.logger.Error("Webhook event processing failed",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
		return nil
	}

	if record.Status == model.WebhookStatusCompleted {
		w.logger.Info("Duplicate webhook delivery acknowledged",
			zap.String("event_id", event.ID))
		return nil
	}

	w.dispatch(ctx, event.ID, event.Event)
	return nil
}

// Replay re-dispatches recorded events whose earlier dispatch failed or
// never finished.
func (w *WebhookIngress) Replay(ctx context.Context, limit int) (*ReplayResult, error) {
	records, err := w.events.GetRetryableEvents(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{}
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		payload, err := json.Marshal(record.Payload)
		if err != nil {
			w.markFailed(ctx, record.GatewayEventID, fmt.Errorf("failed to encode stored payload: %w", err))
			result.Failed++
			continue
		}

		event, err := w.verifier.Decode(payload)
		if err != nil {
			w.markFailed(ctx, record.GatewayEventID, err)
			result.Failed++
			continue
		}

		if w.dispatch(ctx, record.GatewayEventID, event.Event) {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	w.logger.Info("Webhook replay finished",
		zap.Int("candidates", len(records)),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))

	return result, nil
}

// undecodable keeps an authenticated delivery that could not be decoded as a
// failed event so replay retries it and the log shows it.
func (w *WebhookIngress) undecodable(ctx context.Context, event *provider.WebhookEvent) {
	w.logger.Error("Verified webhook could not be decoded",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.Error(event.DecodeErr))

	if event.ID == "" {
		return
	}

	record, err := w.record(ctx, event)
	if err != nil {
		w.logger.Error("Failed to record webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return
	}
	if record.Status == model.WebhookStatusCompleted {
		return
	}
	w.markFailed(ctx, event.ID, event.DecodeErr)
}

func (w *WebhookIngress) record(ctx context.Context, event *provider.WebhookEvent) (*model.WebhookEvent, error) {
	var payload datatypes.JSONMap
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	created := event.Created
	record, _, err := w.events.SaveEvent(ctx, &model.WebhookEvent{
		GatewayEventID:   event.ID,
		Platform:         w.platform,
		EventType:        event.Type,
		GatewayPaymentID: event.Event.PaymentID(),
		Status:           model.WebhookStatusPending,
		Payload:          payload,
		GatewayCreatedAt: &created,
	})
	return record, err
}

// dispatch hands the event to the handler and records the outcome. It
// reports whether the handler succeeded.
func (w *WebhookIngress) dispatch(ctx context.Context, eventID string, event provider.Event) bool {
	if err := w.handler.HandleEvent(ctx, event); err != nil {
		w.logger.Error("Webhook event processing failed",
			zap.String("event_id", eventID),
			zap.Error(err))
		w.markFailed(ctx, eventID, err)
		return false
	}

	if err := w.events.MarkProcessed(ctx, eventID); err != nil {
		w.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
	return true
}

func (w *WebhookIngress) markFailed(ctx context.Context, eventID string, cause error) {
	if err := w.events.MarkFailed(ctx, eventID, cause); err != nil {
		w.logger.Error("Failed to mark webhook event failed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}
