package provider

import "strings"

// Operation names a gateway-mutating call for idempotency keys.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationCancel Operation = "cancel"
	OperationRefund Operation = "refund"
)

// IdempotencyKey derives the key for one logical request. Retries of the
// same request must pass the same nonce.
func IdempotencyKey(op Operation, subject, nonce string) string {
	parts := []string{string(op), subject}
	if nonce != "" {
		parts = append(parts, nonce)
	}
	return strings.Join(parts, ":")
}
