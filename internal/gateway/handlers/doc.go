// Package handlers implements the gateway's credential and election endpoints.
//
// Handlers decode the request, delegate to auth.Issuer or election.Service and
// map failures with gateway.RespondWithErrorResponse. None of them talk to the
// blockchain node directly.
package handlers
