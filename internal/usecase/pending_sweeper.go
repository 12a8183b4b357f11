package usecase

import (
	"context"
	"time"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"go.uber.org/zap"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Scanned   int
	Completed int
	Canceled  int
	Open      int
	Errors    int
}

// PendingSweeper re-reads PENDING payments whose webhooks never arrived and
// mirrors the gateway's verdict.
type PendingSweeper struct {
	payments   repository.PaymentRepository
	gateway    provider.Gateway
	reconciler *Reconciler
	staleAfter time.Duration
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

func NewPendingSweeper(
	payments repository.PaymentRepository,
	gateway provider.Gateway,
	reconciler *Reconciler,
	staleAfter time.Duration,
	batchSize int,
	logger *zap.Logger,
) *PendingSweeper {
	return &PendingSweeper{
		payments:   payments,
		gateway:    gateway,
		reconciler: reconciler,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep processes one batch of stale PENDING payments. Intents the gateway
// reports as succeeded become COMPLETED, canceled ones CANCELLED; anything
// still open is touched so the next batch reaches newer payments.
func (s *PendingSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	cutoff := s.now().Add(-s.staleAfter)

	stale, err := s.payments.ListStale(ctx, model.PaymentStatusPending, cutoff, s.batchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(stale)}
	for _, payment := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		intent, err := s.gateway.RetrieveIntent(ctx, payment.GatewayPaymentID)
		if err != nil {
			s.logger.Warn("Failed to retrieve intent during sweep",
				zap.String("gateway_payment_id", payment.GatewayPaymentID),
				zap.Error(err))
			result.Errors++
			continue
		}

		var target model.PaymentStatus
		switch intent.Status {
		case provider.IntentStatusSucceeded:
			target = model.PaymentStatusCompleted
		case provider.IntentStatusCanceled:
			target = model.PaymentStatusCanceled
		default:
			result.Open++
			if err := s.payments.Touch(ctx, payment.GatewayPaymentID, model.PaymentStatusPending); err != nil {
				s.logger.Warn("Failed to defer open payment to a later sweep",
					zap.String("gateway_payment_id", payment.GatewayPaymentID),
					zap.Error(err))
			}
			continue
		}

		update, err := s.reconciler.transition(ctx, payment.GatewayPaymentID, target, SourceSweep)
		if err != nil {
			s.logger.Error("Failed to apply swept status",
				zap.String("gateway_payment_id", payment.GatewayPaymentID),
				zap.String("target_status", string(target)),
				zap.Error(err))
			result.Errors++
			continue
		}

		if update.Applied {
			if target == model.PaymentStatusCompleted {
				result.Completed++
			} else {
				result.Canceled++
			}
		}
	}

	s.logger.Info("Pending sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("scanned", result.Scanned),
		zap.Int("completed", result.Completed),
		zap.Int("canceled", result.Canceled),
		zap.Int("open", result.Open),
		zap.Int("errors", result.Errors))

	return result, nil
}
