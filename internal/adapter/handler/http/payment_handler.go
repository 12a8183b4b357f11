package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
	"github.com/wekeepgrowing/crowdfund-payment/internal/middleware/auth"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	apperrors "github.com/wekeepgrowing/crowdfund-payment/pkg/errors"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client's request nonce.
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentService is the read/create side of the payments API.
type PaymentService interface {
	CreatePayment(ctx context.Context, in usecase.CreatePaymentInput) (*usecase.CreatePaymentResult, error)
	GetPayment(ctx context.Context, userID uuid.UUID, gatewayPaymentID string) (*model.Payment, error)
	ListUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error)
}

// PaymentReconciler drives status transitions.
type PaymentReconciler interface {
	Capture(ctx context.Context, gatewayPaymentID string) (*model.Payment, error)
	Cancel(ctx context.Context, gatewayPaymentID, nonce string) (*model.Payment, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, nonce string) (*model.Payment, error)
}

type CreatePaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency" validate:"omitempty,len=3,alpha"`
}

type RefundPaymentRequest struct {
	// Amount is omitted for a full refund.
	Amount *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

type PaymentResponse struct {
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Platform         model.Platform  `json:"platform"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	RefundedAmount   decimal.Decimal `json:"refunded_amount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type CreatePaymentResponse struct {
	Payment      PaymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret"`
}

type ListPaymentsResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func toPaymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		GatewayPaymentID: p.GatewayPaymentID,
		Platform:         p.Platform,
		Amount:           p.Amount,
		Currency:         p.Currency,
		RefundedAmount:   p.RefundedAmount,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

type PaymentHandler struct {
	payments   PaymentService
	reconciler PaymentReconciler
	logger     *zap.Logger
}

func NewPaymentHandler(payments PaymentService, reconciler PaymentReconciler, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes mounts the payment routes on an authenticated group.
func (h *PaymentHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/payments", h.CreatePayment)
	g.GET("/payments", h.ListPayments)
	g.GET("/payments/:gateway_id", h.GetPayment)
	g.POST("/payments/:gateway_id/capture", h.CapturePayment)
	g.POST("/payments/:gateway_id/cancel", h.CancelPayment)
	g.POST("/payments/:gateway_id/refund", h.RefundPayment)
}

func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var req CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, h.logger, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return failure(c, h.logger, err)
	}

	result, err := h.payments.CreatePayment(c.Request().Context(), usecase.CreatePaymentInput{
		UserID:   user.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Nonce:    c.Request().Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return failure(c, h.logger, err)
	}

	h.logger.Info("Payment created",
		zap.String("user_id", user.UserID.String()),
		zap.String("gateway_payment_id", result.Payment.GatewayPaymentID),
		zap.String("amount", result.Payment.Amount.String()),
		zap.String("currency", result.Payment.Currency))

	return c.JSON(http.StatusCreated, CreatePaymentResponse{
		Payment:      toPaymentResponse(result.Payment),
		ClientSecret: result.ClientSecret,
	})
}

func (h *PaymentHandler) ListPayments(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	var limit, offset int
	if err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError(); err != nil {
		return failure(c, h.logger, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid pagination parameters", err))
	}

	payments, err := h.payments.ListUserPayments(c.Request().Context(), user.UserID, limit, offset)
	if err != nil {
		return failure(c, h.logger, err)
	}

	limit, offset = usecase.PageBounds(limit, offset)
	resp := ListPaymentsResponse{
		Payments: make([]PaymentResponse, 0, len(payments)),
		Limit:    limit,
		Offset:   offset,
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), user.UserID, c.Param("gateway_id"))
	if err != nil {
		return failure(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

// CapturePayment records a payment the client reports as confirmed. The
// gateway is asked before anything changes.
func (h *PaymentHandler) CapturePayment(c echo.Context) error {
	gatewayID, err := h.owned(c)
	if err != nil {
		return err
	}

	payment, err := h.reconciler.Capture(c.Request().Context(), gatewayID)
	if err != nil {
		return failure(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	gatewayID, err := h.owned(c)
	if err != nil {
		return err
	}

	payment, err := h.reconciler.Cancel(c.Request().Context(), gatewayID, c.Request().Header.Get(IdempotencyKeyHeader))
	if err != nil {
		return failure(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	gatewayID, err := h.owned(c)
	if err != nil {
		return err
	}

	var req RefundPaymentRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, h.logger, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return failure(c, h.logger, err)
	}

	payment, err := h.reconciler.Refund(c.Request().Context(), gatewayID, req.Amount, c.Request().Header.Get(IdempotencyKeyHeader))
	if err != nil {
		return failure(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toPaymentResponse(payment))
}

// owned resolves the path's gateway id and checks that the caller owns it.
func (h *PaymentHandler) owned(c echo.Context) (string, error) {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return "", err
	}

	gatewayID := c.Param("gateway_id")
	if _, err := h.payments.GetPayment(c.Request().Context(), user.UserID, gatewayID); err != nil {
		return "", failure(c, h.logger, err)
	}
	return gatewayID, nil
}
