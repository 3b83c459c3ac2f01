package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
	"github.com/information-sharing-networks/evote-gateway/internal/ratelimit"
)

// RequestSizeLimit returns a middleware that enforces a maximum request body size.
//
// the middleware immediately rejects requests where the Content-Length header is greater than the max size.
// Otherwise the body is wrapped with http.MaxBytesReader and gateway.DecodeJSONBody returns a 413
// if the body turns out to be too large (in case Content-Length is not set or incorrect)
//
// The middleware adds an X-Max-Request-Size header to all responses to inform clients
// of the server's size limit
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Max-Request-Size", strconv.FormatInt(maxBytes, 10))

			if r.ContentLength > maxBytes {
				err := gateway.NewRequestTooLargeError(
					fmt.Sprintf("Request body size (%d bytes) exceeds maximum allowed size (%d bytes)", r.ContentLength, maxBytes),
				)
				gateway.RespondWithErrorResponse(w, r, err)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds security-related headers to all responses
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")

			if environment == "prod" || environment == "staging" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies limiter to every request, keyed by the client address (set by chi's RealIP middleware).
//
// Responses carry RateLimit-Limit, RateLimit-Remaining and RateLimit-Reset headers; rejected requests
// get a 429 with Retry-After and are not passed on.
// If the store fails the request is allowed and the failure logged (at most once a minute per limiter).
// A disabled limiter (max <= 0) returns a no-op middleware.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	if !limiter.Enabled() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	storeFailureLog := &rate.Sometimes{First: 1, Interval: time.Minute}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.ContextRequestLogger(r.Context())
			key := clientKey(r)

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				storeFailureLog.Do(func() {
					reqLogger.Error("Rate limit store unavailable, allowing requests",
						slog.String("component", "RateLimit"),
						slog.String("limiter", limiter.Name()),
						slog.String("error", err.Error()),
					)
				})
				next.ServeHTTP(w, r)
				return
			}

			resetSeconds := strconv.Itoa(ceilSeconds(decision.ResetAfter.Seconds()))
			w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("RateLimit-Reset", resetSeconds)

			if !decision.Allowed {
				reqLogger.Warn("Rate limit exceeded",
					slog.String("component", "RateLimit"),
					slog.String("limiter", limiter.Name()),
					slog.String("remote_addr", key),
				)

				logger.ContextWithLogAttrs(r.Context(),
					slog.String("remote_addr", key),
				)

				w.Header().Set("Retry-After", resetSeconds)
				gateway.RespondWithErrorResponse(w, r, gateway.NewRateLimitError(limiter.Message()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ceilSeconds(s float64) int {
	return int(math.Ceil(s))
}

// clientKey strips the port from RemoteAddr. RealIP replaces RemoteAddr with a bare address
// when a forwarding header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TokenVerifier verifies bearer tokens (implemented by *auth.Issuer)
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

// RequireAccessToken rejects requests without a valid access token.
//
// A missing header, or one that is not a Bearer credential, gets a 401. A token that fails
// verification (bad signature, expired, revoked, refresh token) gets a 403.
// On success the claims are stored in the request context.
func RequireAccessToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				gateway.RespondWithErrorResponse(w, r, auth.NewMissingAccessTokenError())
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				gateway.RespondWithErrorResponse(w, r, err)
				return
			}

			logger.ContextWithLogAttrs(r.Context(), slog.String("subject", claims.Subject))

			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Recoverer catches panics in handlers, logs the stack and returns a JSON 500.
// It replaces chi's Recoverer, which writes a plain text body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.ContextRequestLogger(r.Context()).Error("panic recovered",
				slog.String("panic", fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)

			if r.Header.Get("Connection") != "Upgrade" {
				gateway.RespondWithErrorResponse(w, r, gateway.NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
