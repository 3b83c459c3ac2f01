package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/config"
	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/database"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
	"github.com/information-sharing-networks/evote-gateway/internal/ratelimit"
	"github.com/information-sharing-networks/evote-gateway/internal/server"
	"github.com/information-sharing-networks/evote-gateway/internal/server/handlers"
	"github.com/information-sharing-networks/evote-gateway/internal/version"
)

//	@title			evote-gateway
//	@description	evote-gateway fronts an election smart contract with an authenticated, rate limited HTTP API.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error or unrecognised contract revert
//	@description	- `504` The blockchain node did not respond in time
//	@description
//	@description	Errors are returned as `{"error": "...", "errorCode": 7001, "requestId": "..."}`.
//	@description
//	@description	## Request Limits
//	@description	- **Rate limiting**: the /auth routes allow 5 requests per 15 minutes per client address and the /api routes 100 (see env vars, set to 0 to disable)
//	@description	- **Request size limits**: Configurable (see env vars) - default 64KB
//	@description
//	@description	## Authentication & Authorization
//	@description
//	@description	Client applications exchange their app id and secret at /auth/token for a short lived access token
//	@description	and a longer lived refresh token. Every /api route requires `Authorization: Bearer <access token>`.
//	@description
//	@description	Voter uids are hashed with a server side secret before they are sent to the contract.
//	@license.name	MIT

//	@servers.url			http://localhost:3001
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

//	@tag.name			Auth
//	@tag.description	Credential issue, refresh and revocation

//	@tag.name			Elections
//	@tag.description	State-changing election operations (each call waits for the transaction to be mined)

//	@tag.name			Results
//	@tag.description	Read-only election queries

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version)

func main() {
	cmd := &cobra.Command{
		Use:   "evote-gateway",
		Short: "E-voting API gateway",
		Long:  `evote-gateway authenticates client applications and relays their election operations to the election smart contract`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	// secrets are not logged
	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("APP_ID", cfg.AppID),
		slog.String("RPC_URL", cfg.RPCURL),
		slog.String("CONTRACT_ADDRESS", cfg.ContractAddress),
		slog.String("CONTRACT_ABI", cfg.ContractABI),
		slog.String("RATE_LIMIT_STORE", cfg.RateLimitStore),
		slog.Bool("PUBLIC_RESULTS_REQUIRE_AUTH", cfg.PublicResultsRequireAuth),
		slog.Bool("DATABASE_CONFIGURED", cfg.DatabaseURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []handlers.ReadinessCheck

	// token deny list - postgres when DATABASE_URL is set, otherwise process memory
	var denyList auth.DenyList = auth.NewMemoryDenyList()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = database.Connect(ctx, database.PoolConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConnections,
			MinConns:        cfg.DBMinConnections,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
			ConnectTimeout:  cfg.DBConnectTimeout,
			PingTimeout:     cfg.DatabasePingTimeout,
		})
		if err != nil {
			appLogger.Error("Unable to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("connected to PostgreSQL")

		if err := database.Migrate(ctx, pool, appLogger); err != nil {
			appLogger.Error("Database migration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// get the sqlc generated database queries
		queries := database.New(pool)
		denyList = auth.NewDatabaseDenyList(queries)
		checks = append(checks, handlers.DatabaseCheck(queries))
	} else {
		appLogger.Warn("DATABASE_URL not set - revoked tokens are kept in memory and lost on restart")
	}

	go auth.RunPurge(ctx, denyList, cfg.RevocationPurgeInterval, func(removed int64, err error) {
		if err != nil {
			appLogger.Warn("failed to purge revoked tokens", slog.String("error", err.Error()))
			return
		}
		if removed > 0 {
			appLogger.Debug("purged expired revoked tokens", slog.Int64("removed", removed))
		}
	})

	issuer, err := auth.NewIssuer(auth.Config{
		ClientID:      cfg.AppID,
		ClientSecret:  cfg.AppSecret,
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.TokenIssuer,
	}, auth.WithDenyList(denyList))
	if err != nil {
		appLogger.Error("Failed to create token issuer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hasher, err := crypto.NewVoterHasher(cfg.SecretPhrase)
	if err != nil {
		appLogger.Error("Failed to create voter hasher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	authLimiter, apiLimiter, err := newLimiters(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to create rate limiters", slog.String("error", err.Error()))
		os.Exit(1)
	}

	chainClient, eth, err := contract.Dial(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to the election contract", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eth.Close()
	checks = append(checks, handlers.ChainCheck(chainClient.Ping))

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	// configure the server
	server, err := server.NewServer(cfg, server.Dependencies{
		Issuer:          issuer,
		Elections:       election.NewService(chainClient, cfg.ExplorerTxURL),
		Hasher:          hasher,
		AuthLimiter:     authLimiter,
		APILimiter:      apiLimiter,
		ReadinessChecks: checks,
		Pool:            pool,
	}, appLogger)
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer server.DatabaseShutdown()

	// start the server
	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}

// newLimiters creates the auth and API limiters on the configured store
func newLimiters(ctx context.Context, cfg *config.ServerEnvironment, appLogger *slog.Logger) (authLimiter, apiLimiter *ratelimit.Limiter, err error) {
	var factory func(int, time.Duration) (ratelimit.Store, error)

	switch cfg.RateLimitStore {
	case "redis":
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		go func() {
			<-ctx.Done()
			_ = client.Close()
		}()
		factory = ratelimit.RedisStoreFactory(client)
		appLogger.Info("rate limits shared through redis")
	default:
		factory = func(max int, window time.Duration) (ratelimit.Store, error) {
			store, err := ratelimit.NewMemoryStore(max, window)
			if err != nil {
				return nil, err
			}
			go store.RunSweep(ctx, window)
			return store, nil
		}
	}

	authLimiter, err = ratelimit.New(ratelimit.Config{
		Name:    "auth",
		Max:     cfg.AuthRateLimitMax,
		Window:  cfg.AuthRateLimitWindow,
		Message: "Too many login attempts, please try again later",
	}, factory)
	if err != nil {
		return nil, nil, err
	}

	apiLimiter, err = ratelimit.New(ratelimit.Config{
		Name:    "api",
		Max:     cfg.RateLimitMax,
		Window:  cfg.RateLimitWindow,
		Message: "Too many requests, please try again later.",
	}, factory)
	if err != nil {
		return nil, nil, err
	}
	return authLimiter, apiLimiter, nil
}
