package auth

import (
	"errors"
	"fmt"
)

// Error represents a structured error from the auth package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeMissingCredentials is used when the client id or secret is absent from a token request
	ErrCodeMissingCredentials ErrorCode = "missing_credentials"

	// ErrCodeInvalidCredentials is used when the client id and secret do not match the configured values
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"

	// ErrCodeMissingRefreshToken is used when a refresh request has no refresh token
	ErrCodeMissingRefreshToken ErrorCode = "missing_refresh_token"

	// ErrCodeInvalidRefreshToken covers bad signatures, expiry, malformed tokens, access tokens
	// presented as refresh tokens and revoked refresh tokens
	ErrCodeInvalidRefreshToken ErrorCode = "invalid_refresh_token"

	// ErrCodeMissingAccessToken is used when a protected route is called without a bearer token
	ErrCodeMissingAccessToken ErrorCode = "missing_access_token"

	// ErrCodeInvalidAccessToken is used when a bearer token is present but cannot be accepted
	ErrCodeInvalidAccessToken ErrorCode = "invalid_access_token"

	// ErrCodeMissingToken is used when a revoke request has no token
	ErrCodeMissingToken ErrorCode = "missing_token"

	// ErrCodeInvalidToken is used when the token to revoke is neither a valid access token nor a valid refresh token
	ErrCodeInvalidToken ErrorCode = "invalid_token"

	// ErrCodeInternal is used for signing failures and deny list storage failures
	ErrCodeInternal ErrorCode = "internal"
)

// AuthError represents a structured error from the auth package
type AuthError struct {

	// code is the auth error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *AuthError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *AuthError) Code() ErrorCode { return e.code }
func (e *AuthError) Unwrap() error   { return e.wrapped }

func newError(code ErrorCode, msg string) error {
	return &AuthError{code: code, message: msg}
}

func wrapError(code ErrorCode, err error, msg string) error {
	return &AuthError{code: code, message: msg, wrapped: err}
}

// NewMissingAccessTokenError is returned by the authorization middleware when no bearer token is present.
func NewMissingAccessTokenError() error {
	return newError(ErrCodeMissingAccessToken, "authorization token required")
}

// IsCode reports whether err is an auth error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.code == code
}
