package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxSwapAttempts bounds how often ApplyRefund re-merges after losing a write.
const maxSwapAttempts = 3

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new payment row
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if !payment.Amount.IsPositive() {
		return domainErrors.NewInvalidAmountError(payment.Amount, "amount must be greater than zero")
	}
	if payment.Status == "" {
		payment.Status = model.PaymentStatusPending
	}

	err := r.db.WithContext(ctx).Create(payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			r.logger.Warn("Payment already exists",
				zap.String("gateway_payment_id", payment.GatewayPaymentID))
			return fmt.Errorf("%w: %s", domainErrors.ErrDuplicateKey, payment.GatewayPaymentID)
		}
		r.logger.Error("Failed to create payment",
			zap.String("gateway_payment_id", payment.GatewayPaymentID),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	r.logger.Info("Payment created",
		zap.Int64("id", payment.ID),
		zap.String("gateway_payment_id", payment.GatewayPaymentID),
		zap.String("amount", payment.Amount.String()),
		zap.String("currency", payment.Currency),
		zap.String("status", string(payment.Status)))

	return nil
}

// GetByGatewayID retrieves a payment by its gateway payment id
func (r *paymentRepository) GetByGatewayID(ctx context.Context, gatewayPaymentID string) (*model.Payment, error) {
	var payment model.Payment

	err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownPayment, gatewayPaymentID)
		}
		r.logger.Error("Failed to get payment",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// UpdateStatus moves the payment to status if that is a forward edge from
// its current status. The row is locked and the write is conditioned on the
// status that was read.
func (r *paymentRepository) UpdateStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) (*domainRepo.StatusUpdate, error) {
	var update *domainRepo.StatusUpdate

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lockPayment(tx, gatewayPaymentID)
		if err != nil {
			return err
		}
		update = &domainRepo.StatusUpdate{Payment: current, From: current.Status}

		if !current.Status.CanTransitionTo(status) {
			return nil
		}

		applied, err := r.compareAndSwap(tx, current, map[string]interface{}{
			"status": status,
		})
		if err != nil {
			return err
		}
		if !applied {
			if err := tx.First(current, current.ID).Error; err != nil {
				return err
			}
			update.From = current.Status
			return nil
		}

		current.Status = status
		update.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if update.Applied {
		r.logger.Info("Payment status updated",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("from", string(update.From)),
			zap.String("to", string(status)))
	}

	return update, nil
}

// ApplyRefund records a refund reported by the gateway. The payment becomes
// REFUNDED and RefundedAmount never decreases. A write that loses to a
// concurrent change is re-merged against the reloaded row.
func (r *paymentRepository) ApplyRefund(ctx context.Context, gatewayPaymentID string, refundedTotal decimal.Decimal) (*domainRepo.StatusUpdate, error) {
	var update *domainRepo.StatusUpdate

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lockPayment(tx, gatewayPaymentID)
		if err != nil {
			return err
		}

		for attempt := 1; ; attempt++ {
			update = &domainRepo.StatusUpdate{Payment: current, From: current.Status}

			if current.Status != model.PaymentStatusRefunded && !current.Status.CanTransitionTo(model.PaymentStatusRefunded) {
				return nil
			}

			total := decimal.Max(current.RefundedAmount, refundedTotal)
			if current.Status == model.PaymentStatusRefunded && total.Equal(current.RefundedAmount) {
				return nil
			}

			applied, err := r.compareAndSwap(tx, current, map[string]interface{}{
				"status":          model.PaymentStatusRefunded,
				"refunded_amount": total,
			})
			if err != nil {
				return err
			}
			if applied {
				update.Applied = current.Status != model.PaymentStatusRefunded
				current.Status = model.PaymentStatusRefunded
				current.RefundedAmount = total
				return nil
			}

			if attempt == maxSwapAttempts {
				return fmt.Errorf("payment %s changed concurrently %d times", gatewayPaymentID, attempt)
			}
			if err := tx.First(current, current.ID).Error; err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Payment refund recorded",
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("from", string(update.From)),
		zap.String("status", string(update.Payment.Status)),
		zap.String("refunded_amount", update.Payment.RefundedAmount.String()),
		zap.Bool("applied", update.Applied))

	return update, nil
}

// ListByUser returns a user's payments, newest first
func (r *paymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	var payments []*model.Payment

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&payments).Error; err != nil {
		r.logger.Error("Failed to list payments",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, nil
}

// ListStale returns payments stuck in status since before olderThan
func (r *paymentRepository) ListStale(ctx context.Context, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment

	query := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, olderThan).
		Order("updated_at ASC, id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&payments).Error; err != nil {
		r.logger.Error("Failed to list stale payments",
			zap.String("status", string(status)),
			zap.Time("older_than", olderThan),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}

	return payments, nil
}

// Touch bumps updated_at while the payment is still in status
func (r *paymentRepository) Touch(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus) error {
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("gateway_payment_id = ? AND status = ?", gatewayPaymentID, status).
		Update("updated_at", time.Now()).Error
	if err != nil {
		r.logger.Error("Failed to touch payment",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.Error(err))
		return fmt.Errorf("failed to touch payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) lockPayment(tx *gorm.DB, gatewayPaymentID string) (*model.Payment, error) {
	var payment model.Payment

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownPayment, gatewayPaymentID)
		}
		r.logger.Error("Failed to lock payment row",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	return &payment, nil
}

// compareAndSwap writes updates only if the row still has current's status
// and refunded amount.
func (r *paymentRepository) compareAndSwap(tx *gorm.DB, current *model.Payment, updates map[string]interface{}) (bool, error) {
	now := time.Now()
	updates["updated_at"] = now

	result := tx.Model(&model.Payment{}).
		Where("id = ? AND status = ? AND refunded_amount = ?", current.ID, current.Status, current.RefundedAmount).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update payment",
			zap.String("gateway_payment_id", current.GatewayPaymentID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update payment: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		r.logger.Info("Payment changed concurrently, update skipped",
			zap.String("gateway_payment_id", current.GatewayPaymentID),
			zap.String("expected_status", string(current.Status)))
		return false, nil
	}

	current.UpdatedAt = now
	return true, nil
}
