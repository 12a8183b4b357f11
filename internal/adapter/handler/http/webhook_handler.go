package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/wekeepgrowing/crowdfund-payment/pkg/errors"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes bounds the payload read from the gateway.
const maxWebhookBodyBytes = 1 << 16

// StripeSignatureHeader carries the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// WebhookReceiver verifies and applies one webhook delivery. A non-nil error
// means the delivery is rejected.
type WebhookReceiver interface {
	Receive(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	receiver WebhookReceiver
	logger   *zap.Logger
}

func NewWebhookHandler(receiver WebhookReceiver, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
		logger:   logger,
	}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook answers 200 for every verified delivery, including
// ones about unknown payments, so the gateway stops redelivering them.
func (h *WebhookHandler) HandleStripeWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes+1))
	if err != nil {
		h.logger.Error("Error reading webhook body", zap.Error(err))
		return failure(c, h.logger, apperrors.NewAppError(apperrors.ErrInvalidArgument, "error reading request body", err))
	}
	if len(body) > maxWebhookBodyBytes {
		return failure(c, h.logger, apperrors.NewAppError(apperrors.ErrInvalidArgument, "webhook payload too large", nil))
	}

	if err := h.receiver.Receive(c.Request().Context(), body, c.Request().Header.Get(StripeSignatureHeader)); err != nil {
		h.logger.Warn("Webhook rejected",
			zap.Error(err),
			zap.Int("payload_bytes", len(body)))
		httpErr := failure(c, h.logger, err)
		httpErr.Code = http.StatusBadRequest
		return httpErr
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
