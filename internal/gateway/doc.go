// Package gateway holds the HTTP-facing error taxonomy, request and response types and
// response helpers shared by the gateway's handlers and middleware.
//
// Errors from the auth, election and contract packages are converted to a status code and JSON body
// in one place (MapErrorToResponse). Handlers should return lower level errors unchanged and call
// RespondWithErrorResponse.
package gateway
