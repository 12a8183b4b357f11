package errors

// Common error codes
const (
	ErrInternal           = "INTERNAL"
	ErrNotFound           = "NOT_FOUND"
	ErrInvalidArgument    = "INVALID_ARGUMENT"
	ErrUnauthenticated    = "UNAUTHENTICATED"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrConflict           = "CONFLICT"
	ErrFailedPrecondition = "FAILED_PRECONDITION"
	ErrUnavailable        = "UNAVAILABLE"
	ErrTimeout            = "TIMEOUT"
	ErrNotImplemented     = "NOT_IMPLEMENTED"
)

// CodePair maps an error code onto transport status codes.
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:           {500, 13}, // INTERNAL
	ErrNotFound:           {404, 5},  // NOT_FOUND
	ErrInvalidArgument:    {400, 3},  // INVALID_ARGUMENT
	ErrUnauthenticated:    {401, 16}, // UNAUTHENTICATED
	ErrUnauthorized:       {403, 7},  // PERMISSION_DENIED
	ErrConflict:           {409, 6},  // ALREADY_EXISTS
	ErrFailedPrecondition: {409, 9},  // FAILED_PRECONDITION
	ErrUnavailable:        {502, 14}, // UNAVAILABLE
	ErrTimeout:            {504, 4},  // DEADLINE_EXCEEDED
	ErrNotImplemented:     {501, 12}, // UNIMPLEMENTED
}

// GetCodeMapping returns the HTTP status and gRPC code for an error code.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
