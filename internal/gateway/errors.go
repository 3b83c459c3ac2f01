package gateway

// errors.go defines the error codes returned in gateway error responses

import "fmt"

// GatewayError represents a structured error raised by the HTTP layer itself
// (malformed requests, size limits, rate limits).
type GatewayError struct {
	// code is the gateway error code
	code ErrorCode

	// message is a human-readable error message, returned to the client
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *GatewayError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *GatewayError) Code() ErrorCode { return e.code }
func (e *GatewayError) Message() string { return e.message }
func (e *GatewayError) Unwrap() error   { return e.wrapped }

// ErrorCode is returned in the errorCode field of error responses.
//
//   - 7000-7999 technical errors: the request could not be processed (bad input, limits, upstream failures)
//   - 8000-8999 functional errors: the request was valid but the operation was refused
type ErrorCode int

const (
	// ErrCodeMalformedRequest is used when the request body is not valid JSON
	ErrCodeMalformedRequest ErrorCode = 7001

	// ErrCodeMissingInput is used when required request fields are empty
	ErrCodeMissingInput ErrorCode = 7002

	// ErrCodeInvalidArgument is used when a field cannot be passed to the contract (e.g. an unknown gender)
	ErrCodeInvalidArgument ErrorCode = 7003

	// ErrCodeRequestTooLarge is used when the request body exceeds MAX_REQUEST_SIZE
	// - this is only used in the middleware
	ErrCodeRequestTooLarge ErrorCode = 7004

	// ErrCodeRateLimitExceeded is used when a client exceeds a rate limit window
	// - this is only used in the middleware
	ErrCodeRateLimitExceeded ErrorCode = 7005

	// ErrCodeUnauthorized is used when no bearer token is supplied
	ErrCodeUnauthorized ErrorCode = 7006

	// ErrCodeInternalError is used for unexpected server side failures
	ErrCodeInternalError ErrorCode = 7007

	// ErrCodeUpstreamFailure is used when the blockchain node fails or a call reverts for an unrecognised reason
	ErrCodeUpstreamFailure ErrorCode = 7008

	// ErrCodeUpstreamTimeout is used when the blockchain node does not respond in time
	ErrCodeUpstreamTimeout ErrorCode = 7009

	// ErrCodeUnsupported is used when the configured contract has no method for the operation
	ErrCodeUnsupported ErrorCode = 7010

	// ErrCodeInvalidCredentials is used when client credentials are wrong
	ErrCodeInvalidCredentials ErrorCode = 8001

	// ErrCodeForbidden is used when a token is invalid, expired or revoked
	ErrCodeForbidden ErrorCode = 8002

	// ErrCodeNotAuthorized is used when the contract refuses the gateway's transaction key
	ErrCodeNotAuthorized ErrorCode = 8003

	// ErrCodeNotFound is used for unknown candidates
	ErrCodeNotFound ErrorCode = 8004

	// ErrCodeUnknownElection is used when the election id is not known to the contract
	ErrCodeUnknownElection ErrorCode = 8005

	// ErrCodeConflict is used for duplicate votes and duplicate candidate registrations
	ErrCodeConflict ErrorCode = 8006

	// ErrCodeElectionNotEnded is used when public results are requested before the election ends
	ErrCodeElectionNotEnded ErrorCode = 8007
)

// NewMalformedRequestError creates an error for malformed requests.
func NewMalformedRequestError(msg string) error {
	return &GatewayError{code: ErrCodeMalformedRequest, message: msg}
}

// WrapMalformedRequestError wraps a JSON decoding error as a malformed request error.
func WrapMalformedRequestError(err error, msg string) error {
	return &GatewayError{code: ErrCodeMalformedRequest, message: msg, wrapped: err}
}

// NewMissingInputError is used by handlers validating query parameters.
func NewMissingInputError(msg string) error {
	return &GatewayError{code: ErrCodeMissingInput, message: msg}
}

// NewRateLimitError creates a rate limit error carrying the limiter's client message.
func NewRateLimitError(msg string) error {
	return &GatewayError{code: ErrCodeRateLimitExceeded, message: msg}
}

// NewRequestTooLargeError creates an error for oversized request bodies.
func NewRequestTooLargeError(msg string) error {
	return &GatewayError{code: ErrCodeRequestTooLarge, message: msg}
}

// NewInternalError creates an internal error for unexpected failures.
func NewInternalError(msg string) error {
	return &GatewayError{code: ErrCodeInternalError, message: msg}
}

// WrapInternalError wraps an unexpected failure. The wrapped error is logged but not returned to the client.
func WrapInternalError(err error, msg string) error {
	return &GatewayError{code: ErrCodeInternalError, message: msg, wrapped: err}
}
