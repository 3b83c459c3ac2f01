// Package server provides the HTTP server for the e-voting gateway.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// Routes:
//   - /auth: credential issue, refresh and revocation (auth rate limiter)
//   - /api: election operations, bearer token required (API rate limiter)
//   - /health/live, /health/ready and /version
//
// middleware is in internal/server/middleware, the /auth and /api handlers are in internal/gateway/handlers
package server
