package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/provider"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/repository"
	apperrors "github.com/wekeepgrowing/crowdfund-payment/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// MinimumChargeAmount is the smallest amount accepted for a new payment.
var MinimumChargeAmount = decimal.RequireFromString("0.50")

// CreatePaymentInput is a request to start a payment.
type CreatePaymentInput struct {
	UserID   uuid.UUID
	Amount   decimal.Decimal
	Currency string
	// Nonce identifies the logical request; retries must reuse it.
	Nonce string
}

// CreatePaymentResult is the new payment and the secret the client needs to
// confirm it with the gateway.
type CreatePaymentResult struct {
	Payment      *model.Payment
	ClientSecret string
}

type PaymentUsecase struct {
	payments        repository.PaymentRepository
	gateway         provider.Gateway
	defaultCurrency string
	logger          *zap.Logger
}

func NewPaymentUsecase(
	payments repository.PaymentRepository,
	gateway provider.Gateway,
	defaultCurrency string,
	logger *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		payments:        payments,
		gateway:         gateway,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		logger:          logger,
	}
}

// CreatePayment creates a gateway intent and its PENDING local payment. A
// retry with the same nonce returns the payment created the first time.
func (u *PaymentUsecase) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if in.UserID == uuid.Nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "user ID is required", nil)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = u.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "currency must be a 3-letter ISO code", nil)
	}

	if !in.Amount.IsPositive() {
		return nil, domainErrors.NewInvalidAmountError(in.Amount, "amount must be greater than zero")
	}
	if in.Amount.LessThan(MinimumChargeAmount) {
		return nil, &domainErrors.InvalidAmountError{
			Amount: in.Amount,
			Limit:  MinimumChargeAmount,
			Reason: "amount is below the minimum charge",
		}
	}
	if !model.FitsMinorUnit(in.Amount, currency) {
		return nil, domainErrors.NewInvalidAmountError(in.Amount, "amount has more precision than "+currency+" allows")
	}

	nonce := in.Nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}

	intent, err := u.gateway.CreateIntent(ctx, &provider.CreateIntentRequest{
		Amount:         in.Amount,
		Currency:       currency,
		IdempotencyKey: provider.IdempotencyKey(provider.OperationCreate, in.UserID.String(), nonce),
		Metadata:       map[string]string{"user_id": in.UserID.String()},
	})
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		UserID:           in.UserID,
		Platform:         u.gateway.Platform(),
		GatewayPaymentID: intent.ID,
		Amount:           in.Amount,
		Currency:         currency,
		Status:           model.PaymentStatusPending,
	}

	if err := u.payments.Create(ctx, payment); err != nil {
		if !errors.Is(err, domainErrors.ErrDuplicateKey) {
			return nil, err
		}

		// the gateway replayed an earlier create for this key
		existing, getErr := u.payments.GetByGatewayID(ctx, intent.ID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.UserID != in.UserID {
			u.logger.Error("Gateway intent already belongs to another user",
				zap.String("gateway_payment_id", intent.ID),
				zap.String("user_id", in.UserID.String()))
			return nil, err
		}
		payment = existing
	}

	return &CreatePaymentResult{
		Payment:      payment,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// GetPayment returns a payment owned by userID. Other users' payments are
// reported as unknown.
func (u *PaymentUsecase) GetPayment(ctx context.Context, userID uuid.UUID, gatewayPaymentID string) (*model.Payment, error) {
	if gatewayPaymentID == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "gateway payment ID is required", nil)
	}

	payment, err := u.payments.GetByGatewayID(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}

	if payment.UserID != userID {
		u.logger.Warn("Payment requested by non-owner",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("user_id", userID.String()))
		return nil, domainErrors.ErrUnknownPayment
	}

	return payment, nil
}

// PageBounds clamps list pagination to what ListUserPayments applies.
func PageBounds(limit, offset int) (int, int) {
	if limit < 1 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListUserPayments returns a page of the user's payments, newest first
func (u *PaymentUsecase) ListUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	if userID == uuid.Nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidArgument, "user ID is required", nil)
	}

	limit, offset = PageBounds(limit, offset)
	return u.payments.ListByUser(ctx, userID, limit, offset)
}
