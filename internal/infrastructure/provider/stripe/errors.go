package stripe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	domainErrors "github.com/wekeepgrowing/crowdfund-payment/internal/domain/errors"
)

// translateError maps a stripe-go error onto the domain taxonomy. Requests
// Stripe refused for the intent's state become InvalidStateError; transport
// failures and server errors become ErrGatewayUnavailable.
func translateError(operation, gatewayPaymentID string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState ||
			stripeErr.Type == stripe.ErrorTypeIdempotency {
			return &domainErrors.InvalidStateError{
				Operation:        operation,
				GatewayPaymentID: gatewayPaymentID,
				Cause:            err,
			}
		}

		switch stripeErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusNotFound, http.StatusConflict:
			return &domainErrors.InvalidStateError{
				Operation:        operation,
				GatewayPaymentID: gatewayPaymentID,
				Cause:            err,
			}
		}
	}

	return fmt.Errorf("%s %s: %w: %w", operation, gatewayPaymentID, domainErrors.ErrGatewayUnavailable, err)
}
