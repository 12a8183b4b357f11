package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
	apperrors "github.com/wekeepgrowing/crowdfund-payment/pkg/errors"
	"go.uber.org/zap"
)

// reasons gives clients a stable name for domain failures that share a
// transport code.
var reasons = []struct {
	target error
	reason string
}{
	{domainErrors.ErrNotYetPaid, "NOT_YET_PAID"},
	{domainErrors.ErrInconsistentState, "INCONSISTENT_STATE"},
	{domainErrors.ErrInvalidState, "INVALID_STATE"},
	{domainErrors.ErrInvalidAmount, "INVALID_AMOUNT"},
	{domainErrors.ErrUnknownPayment, "UNKNOWN_PAYMENT"},
	{domainErrors.ErrDuplicateKey, "DUPLICATE_KEY"},
	{domainErrors.ErrSignatureInvalid, "SIGNATURE_INVALID"},
	{domainErrors.ErrMalformedEvent, "MALFORMED_EVENT"},
	{domainErrors.ErrGatewayUnavailable, "GATEWAY_UNAVAILABLE"},
}

func reasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.target) {
			return r.reason
		}
	}
	return ""
}

// failure converts err into an HTTP error whose body is
// {"error", "code", "reason"} with the status its code maps to.
func failure(c echo.Context, logger *zap.Logger, err error) *echo.HTTPError {
	httpErr := apperrors.ToHTTPError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		apperrors.LogError(logger, err, "request failed",
			zap.String("path", c.Request().URL.Path),
			zap.String("method", c.Request().Method))
	}

	reason := reasonOf(err)
	message := err.Error()
	if httpErr.Code == http.StatusInternalServerError && reason == "" {
		message = http.StatusText(http.StatusInternalServerError)
	}

	body := echo.Map{
		"error": message,
		"code":  apperrors.CodeOf(err),
	}
	if reason != "" {
		body["reason"] = reason
	}
	return echo.NewHTTPError(httpErr.Code, body)
}
