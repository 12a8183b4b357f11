package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
	apperrors "github.com/wekeepgrowing/crowdfund-payment/pkg/errors"
)

// Sentinel errors of the payment domain. Match them with errors.Is; the
// embedded code drives the HTTP status.
var (
	ErrDuplicateKey = apperrors.NewAppError(apperrors.ErrConflict,
		"a payment with this gateway payment id already exists", nil)
	ErrInvalidAmount = apperrors.NewAppError(apperrors.ErrInvalidArgument,
		"amount must be positive", nil)
	ErrNotYetPaid = apperrors.NewAppError(apperrors.ErrFailedPrecondition,
		"payment intent has not succeeded yet", nil)
	ErrUnknownPayment = apperrors.NewAppError(apperrors.ErrNotFound,
		"payment not found", nil)
	ErrInvalidState = apperrors.NewAppError(apperrors.ErrFailedPrecondition,
		"gateway rejected the operation for the intent's current state", nil)
	ErrSignatureInvalid = apperrors.NewAppError(apperrors.ErrInvalidArgument,
		"webhook signature verification failed", nil)
	ErrMalformedEvent = apperrors.NewAppError(apperrors.ErrInvalidArgument,
		"webhook payload could not be decoded", nil)
	ErrGatewayUnavailable = apperrors.NewAppError(apperrors.ErrUnavailable,
		"payment gateway request failed", nil)
	ErrInconsistentState = apperrors.NewAppError(apperrors.ErrInternal,
		"gateway and local payment records disagree", nil)
)

// InvalidAmountError reports why an amount was rejected.
type InvalidAmountError struct {
	Amount decimal.Decimal
	Limit  decimal.Decimal
	Reason string
}

func (e *InvalidAmountError) Error() string {
	if e.Limit.IsZero() {
		return fmt.Sprintf("invalid amount %s: %s", e.Amount.String(), e.Reason)
	}
	return fmt.Sprintf("invalid amount %s: %s (limit %s)", e.Amount.String(), e.Reason, e.Limit.String())
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// NewInvalidAmountError creates an InvalidAmountError
func NewInvalidAmountError(amount decimal.Decimal, reason string) *InvalidAmountError {
	return &InvalidAmountError{Amount: amount, Reason: reason}
}

// NotYetPaidError carries the status the gateway reported instead of "succeeded".
type NotYetPaidError struct {
	GatewayPaymentID string
	GatewayStatus    string
}

func (e *NotYetPaidError) Error() string {
	return fmt.Sprintf("payment intent %s has not been paid yet (status=%s)", e.GatewayPaymentID, e.GatewayStatus)
}

func (e *NotYetPaidError) Unwrap() error {
	return ErrNotYetPaid
}

// InvalidStateError is returned when the gateway refuses an operation.
type InvalidStateError struct {
	Operation        string
	GatewayPaymentID string
	Cause            error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s rejected by gateway: %v", e.Operation, e.GatewayPaymentID, e.Cause)
}

func (e *InvalidStateError) Unwrap() []error {
	return []error{ErrInvalidState, e.Cause}
}

// InconsistencyError means the gateway applied a mutation that could not be
// reflected locally. It needs manual reconciliation.
type InconsistencyError struct {
	Operation        string
	GatewayPaymentID string
	Cause            error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%s succeeded at the gateway for %s but was not recorded locally: %v",
		e.Operation, e.GatewayPaymentID, e.Cause)
}

func (e *InconsistencyError) Unwrap() []error {
	return []error{ErrInconsistentState, e.Cause}
}
