package gateway

// error_response.go maps errors from the auth, election and contract packages to the JSON error body
// returned to clients.

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
)

// ErrorResponse is the JSON body of every error response.
//
// Exactly one of Error and Message is set: Message is used for refusals the original API reported
// as messages (election not ended), Error for everything else.
type ErrorResponse struct {
	// StatusCode is the HTTP status, it is not part of the body
	StatusCode int `json:"-"`

	Error   string `json:"error,omitempty" example:"Invalid or expired token"`
	Message string `json:"message,omitempty" example:"Election is not yet ended."`

	// ErrorCode is 7000-7999 for technical errors, 8000-8999 for functional errors
	ErrorCode ErrorCode `json:"errorCode" example:"8002"`

	// RequestID correlates the response with server logs
	RequestID string `json:"requestId,omitempty" example:"host/abc123-000001"`

	// ElectionID and Results are echoed for unknown election errors
	ElectionID string `json:"electionId,omitempty" example:"2025-general"`
	Results    *[]any `json:"results,omitempty"`

	// TxHash is echoed when a transaction was sent but its settlement could not be confirmed
	TxHash string `json:"txHash,omitempty" example:"0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"`
}

// Client-facing text for internal failures
const internalErrorText = "Internal Server Error"

// MapErrorToResponse maps an error to the response sent to the client.
//
// The client sees a sanitized message; the full error is logged server-side by RespondWithErrorResponse.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	requestID := middleware.GetReqID(r.Context())

	resp := mapError(err)
	resp.RequestID = requestID

	if resp.ErrorCode == ErrCodeInternalError && resp.Error == "" {
		// not expected - log the unmapped error type so it can be added to the mapping
		reqLogger := logger.ContextRequestLogger(r.Context())
		reqLogger.Error("BUG: Unmapped error type in MapErrorToResponse",
			slog.String("error_type", fmt.Sprintf("%T", err)),
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		resp.Error = internalErrorText
	}
	return resp
}

func mapError(err error) *ErrorResponse {
	// gateway errors first - they are raised by the HTTP layer and never wrap lower level errors of interest
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return errorResponseFromGateway(gatewayErr)
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return errorResponseFromAuth(authErr)
	}

	var missing *election.MissingFieldsError
	if errors.As(err, &missing) {
		return &ErrorResponse{StatusCode: http.StatusBadRequest, ErrorCode: ErrCodeMissingInput, Error: missing.Error()}
	}

	if errors.Is(err, election.ErrElectionNotEnded) {
		return &ErrorResponse{StatusCode: http.StatusForbidden, ErrorCode: ErrCodeElectionNotEnded, Message: "Election is not yet ended."}
	}

	if errors.Is(err, election.ErrUnsupportedOperation) {
		return &ErrorResponse{StatusCode: http.StatusNotImplemented, ErrorCode: ErrCodeUnsupported, Error: "This operation is not supported by the configured contract"}
	}

	var contractErr *contract.Error
	if errors.As(err, &contractErr) {
		resp := errorResponseFromContract(contractErr)
		var opErr *election.OpError
		hasOp := errors.As(err, &opErr)
		if contractErr.Kind() == contract.KindUnknownElection {
			if hasOp {
				resp.ElectionID = opErr.ElectionID
			}
			resp.Results = &[]any{}
		}
		if hasOp {
			// the transaction may still settle, the hash lets the client look it up
			resp.TxHash = opErr.TxHash
		}
		return resp
	}

	return &ErrorResponse{StatusCode: http.StatusInternalServerError, ErrorCode: ErrCodeInternalError}
}

// errorResponseFromGateway maps gateway.Error to API error responses
func errorResponseFromGateway(err *GatewayError) *ErrorResponse {
	var statusCode int
	message := err.Message()

	switch err.Code() {
	case ErrCodeMalformedRequest, ErrCodeMissingInput, ErrCodeInvalidArgument:
		statusCode = http.StatusBadRequest
	case ErrCodeUnauthorized:
		statusCode = http.StatusUnauthorized
	case ErrCodeRequestTooLarge:
		statusCode = http.StatusRequestEntityTooLarge
	case ErrCodeRateLimitExceeded:
		statusCode = http.StatusTooManyRequests
	default:
		statusCode = http.StatusInternalServerError
		message = internalErrorText
	}
	return &ErrorResponse{StatusCode: statusCode, ErrorCode: err.Code(), Error: message}
}

// errorResponseFromAuth maps auth.Error to API error responses
func errorResponseFromAuth(err *auth.AuthError) *ErrorResponse {
	switch err.Code() {
	case auth.ErrCodeMissingCredentials:
		return &ErrorResponse{StatusCode: http.StatusBadRequest, ErrorCode: ErrCodeMissingInput, Error: "Missing credentials"}
	case auth.ErrCodeInvalidCredentials:
		return &ErrorResponse{StatusCode: http.StatusUnauthorized, ErrorCode: ErrCodeInvalidCredentials, Error: "Invalid credentials"}
	case auth.ErrCodeMissingRefreshToken:
		return &ErrorResponse{StatusCode: http.StatusBadRequest, ErrorCode: ErrCodeMissingInput, Error: "Refresh token required"}
	case auth.ErrCodeInvalidRefreshToken:
		return &ErrorResponse{StatusCode: http.StatusForbidden, ErrorCode: ErrCodeForbidden, Error: "Invalid refresh token"}
	case auth.ErrCodeMissingToken:
		return &ErrorResponse{StatusCode: http.StatusBadRequest, ErrorCode: ErrCodeMissingInput, Error: "Token required"}
	case auth.ErrCodeInvalidToken:
		return &ErrorResponse{StatusCode: http.StatusForbidden, ErrorCode: ErrCodeForbidden, Error: "Invalid token"}
	case auth.ErrCodeMissingAccessToken:
		return &ErrorResponse{StatusCode: http.StatusUnauthorized, ErrorCode: ErrCodeUnauthorized, Error: "Authorization token required"}
	case auth.ErrCodeInvalidAccessToken:
		return &ErrorResponse{StatusCode: http.StatusForbidden, ErrorCode: ErrCodeForbidden, Error: "Invalid or expired token"}
	default:
		return &ErrorResponse{StatusCode: http.StatusInternalServerError, ErrorCode: ErrCodeInternalError, Error: internalErrorText}
	}
}

// errorResponseFromContract maps contract.Error to API error responses.
// Unrecognised reverts and transport failures pass the node's message through.
func errorResponseFromContract(err *contract.Error) *ErrorResponse {
	var statusCode int
	var code ErrorCode

	switch err.Kind() {
	case contract.KindAlreadyVoted, contract.KindDuplicateCandidate:
		statusCode, code = http.StatusConflict, ErrCodeConflict
	case contract.KindUnknownCandidate:
		statusCode, code = http.StatusNotFound, ErrCodeNotFound
	case contract.KindUnknownElection:
		statusCode, code = http.StatusNotFound, ErrCodeUnknownElection
	case contract.KindNotOwner:
		statusCode, code = http.StatusForbidden, ErrCodeNotAuthorized
	case contract.KindInvalidArgument:
		statusCode, code = http.StatusBadRequest, ErrCodeInvalidArgument
	case contract.KindTimeout:
		statusCode, code = http.StatusGatewayTimeout, ErrCodeUpstreamTimeout
	default:
		statusCode, code = http.StatusInternalServerError, ErrCodeUpstreamFailure
	}
	return &ErrorResponse{StatusCode: statusCode, ErrorCode: code, Error: err.Message()}
}
