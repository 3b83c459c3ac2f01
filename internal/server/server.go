package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/config"
	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	gatewayhandlers "github.com/information-sharing-networks/evote-gateway/internal/gateway/handlers"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
	"github.com/information-sharing-networks/evote-gateway/internal/ratelimit"
	"github.com/information-sharing-networks/evote-gateway/internal/server/handlers"
	mw "github.com/information-sharing-networks/evote-gateway/internal/server/middleware"
	"github.com/information-sharing-networks/evote-gateway/internal/version"
)

// Dependencies are the components the routes delegate to. They are built in cmd/evote-gateway.
type Dependencies struct {
	Issuer    *auth.Issuer
	Elections *election.Service
	Hasher    *crypto.VoterHasher

	AuthLimiter *ratelimit.Limiter
	APILimiter  *ratelimit.Limiter

	// ReadinessChecks are run by /health/ready
	ReadinessChecks []handlers.ReadinessCheck

	// Pool is closed by DatabaseShutdown (optional)
	Pool *pgxpool.Pool
}

type Server struct {
	deps   Dependencies
	config *config.ServerEnvironment
	logger *slog.Logger
	router *chi.Mux
}

func NewServer(
	cfg *config.ServerEnvironment,
	deps Dependencies,
	logger *slog.Logger,
) (*Server, error) {
	if deps.Issuer == nil || deps.Elections == nil || deps.Hasher == nil {
		return nil, fmt.Errorf("issuer, election service and voter hasher are required")
	}

	server := &Server{
		deps:   deps,
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

// Router returns the configured router (used in tests)
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(mw.Recoverer)
	s.router.Use(mw.SecurityHeaders(s.config.Environment))

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	s.router.Use(middleware.Timeout(s.config.RequestTimeout))
}

func (s *Server) registerRoutes() {
	authHandler := gatewayhandlers.NewAuthHandler(s.deps.Issuer)
	electionHandler := gatewayhandlers.NewElectionHandler(s.deps.Elections, s.deps.Hasher)
	requireToken := mw.RequireAccessToken(s.deps.Issuer)

	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.config.DatabasePingTimeout, s.deps.ReadinessChecks...))
	s.router.Get("/version", handlers.HandleVersion(version.Get()))

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(mw.RateLimit(s.deps.AuthLimiter))
		r.Use(mw.RequestSizeLimit(s.config.MaxRequestSize))

		r.Post("/token", authHandler.HandleToken)
		r.Post("/refresh", authHandler.HandleRefresh)

		r.With(requireToken).Post("/revoke", authHandler.HandleRevoke)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.RateLimit(s.deps.APILimiter))
		r.Use(mw.RequestSizeLimit(s.config.MaxRequestSize))

		if !s.config.PublicResultsRequireAuth {
			r.Get("/public-result/{electionId}", electionHandler.HandlePublicResults)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireToken)

			if s.config.PublicResultsRequireAuth {
				r.Get("/public-result/{electionId}", electionHandler.HandlePublicResults)
			}

			r.Post("/vote", electionHandler.HandleVote)
			r.Post("/register", electionHandler.HandleRegisterCandidate)
			r.Delete("/remove", electionHandler.HandleRemoveCandidate)
			r.Post("/end", electionHandler.HandleEndElection)

			r.Get("/votesByElection", electionHandler.HandleResults)
			r.Get("/elections", electionHandler.HandleElections)
			r.Get("/getElectionsList", electionHandler.HandleElections)
			r.Get("/votes", electionHandler.HandleVoteCount)
			r.Get("/checkVoted", electionHandler.HandleCheckVoted)
			r.Get("/constituencyResults", electionHandler.HandleConstituencyResults)
			r.Get("/demkhongResults", electionHandler.HandleConstituencyResults)
		})
	})
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	// in-flight requests waiting for a transaction to settle are given until the shutdown timeout
	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

func (s *Server) DatabaseShutdown() {
	if s.deps.Pool != nil {
		s.deps.Pool.Close()
		s.logger.Info("database connection closed")
	}
}
