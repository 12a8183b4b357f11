package provider

// WebhookVerifier authenticates and decodes gateway webhook deliveries.
type WebhookVerifier interface {
	// Verify checks signature against payload with the shared secret and
	// decodes the event. It fails only with ErrSignatureInvalid; an
	// authenticated payload that cannot be decoded is returned with
	// DecodeErr set.
	Verify(payload []byte, signature string) (*WebhookEvent, error)

	// Decode parses a payload that was verified when it was first received.
	// It fails with ErrMalformedEvent when the payload cannot be decoded.
	Decode(payload []byte) (*WebhookEvent, error)
}
