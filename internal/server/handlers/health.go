package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/information-sharing-networks/evote-gateway/internal/database"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
)

// ReadinessCheck is a dependency that must be reachable before the gateway accepts traffic
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// DatabaseCheck checks the deny list database
func DatabaseCheck(queries *database.Queries) ReadinessCheck {
	return ReadinessCheck{
		Name: "database",
		Ping: func(ctx context.Context) error {
			_, err := queries.IsDatabaseRunning(ctx)
			return err
		},
	}
}

// ChainCheck checks the blockchain node (ping is typically (*contract.Client).Ping)
func ChainCheck(ping func(ctx context.Context) error) ReadinessCheck {
	return ReadinessCheck{Name: "chain", Ping: ping}
}

type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
	Reason string `json:"reason,omitempty" example:"chain unavailable"`
}

// HandleHealth godoc
//
//	@Summary		Health (liveness) Check
//	@Description	Check if the HTTP service is alive and responding.
//	@Tags			Common
//	@Produce		plain
//
//	@Success		200	{string}	string	"OK"
//
//	@Router			/health/live [get]
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleReadiness godoc
//
//	@Summary		Readiness Check
//	@Description	Checks if the service is ready to accept traffic (blockchain node reachable and, when configured, database connectivity)
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	ReadinessResponse	"status ready"
//	@Failure		503	{object}	ReadinessResponse	"status not ready"
//	@Router			/health/ready [get]
func HandleReadiness(timeout time.Duration, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.ContextRequestLogger(r.Context()).Warn("readiness check failed",
					slog.String("check", check.Name),
					slog.String("error", err.Error()),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(ReadinessResponse{Status: "not ready", Reason: check.Name + " unavailable"})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(ReadinessResponse{Status: "ready"})
	}
}
