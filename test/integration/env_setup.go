//go:build integration

package integration

// Test environment setup and server lifecycle management.
//
// The integration tests start the evote-gateway HTTP server in-process against a temporary
// postgres database (used for the token deny list) and a miniredis instance (used for the shared rate limits).
// The election contract is the in-memory fake from contracttest.
//
// Each test creates an empty temporary database and applies the embedded migrations.
// The database is dropped after each test.
//
// By default the server logs are not included in the test output, you can enable them with:
//
//	ENABLE_SERVER_LOGS=true go test -tags=integration -v ./test/integration
//

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/config"
	"github.com/information-sharing-networks/evote-gateway/internal/contract"
	"github.com/information-sharing-networks/evote-gateway/internal/contract/contracttest"
	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/database"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
	"github.com/information-sharing-networks/evote-gateway/internal/ratelimit"
	"github.com/information-sharing-networks/evote-gateway/internal/server"
	"github.com/information-sharing-networks/evote-gateway/internal/server/handlers"
)

const (
	testAppID     = "evote-client"
	testAppSecret = "integration-secret"
)

// testEnv provides access to the test db and server for integration tests
type testEnv struct {
	baseURL  string
	cfg      *config.ServerEnvironment
	pool     *pgxpool.Pool
	queries  *database.Queries
	redis    *miniredis.Miniredis
	fake     *contracttest.Fake
	shutdown func()
}

// testLogger discards server logs unless ENABLE_SERVER_LOGS=true
func testLogger() *slog.Logger {
	if os.Getenv("ENABLE_SERVER_LOGS") == "true" {
		return logger.InitLogger(logger.ParseLogLevel("debug"), "test")
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serverConfig(port int) *config.ServerEnvironment {
	return &config.ServerEnvironment{
		Environment:              "test",
		Host:                     "localhost",
		Port:                     port,
		ServerShutdownTimeout:    5 * time.Second,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             30 * time.Second,
		IdleTimeout:              30 * time.Second,
		RequestTimeout:           20 * time.Second,
		MaxRequestSize:           65536,
		AppID:                    testAppID,
		AppSecret:                testAppSecret,
		JWTAccessSecret:          "integration-access-secret",
		JWTRefreshSecret:         "integration-refresh-secret",
		AccessTokenTTL:           15 * time.Minute,
		RefreshTokenTTL:          24 * time.Hour,
		TokenIssuer:              "evote-gateway",
		RateLimitStore:           "redis",
		RateLimitMax:             100,
		RateLimitWindow:          15 * time.Minute,
		AuthRateLimitMax:         5,
		AuthRateLimitWindow:      15 * time.Minute,
		ContractABI:              contract.ABIDemographic,
		PublicResultsRequireAuth: true,
		DatabasePingTimeout:      2 * time.Second,
	}
}

// startInProcessServer starts evote-gateway on a free port using the supplied pool for the deny list.
// The miniredis instance is shared so that servers started against the same env see the same rate limit counters.
func startInProcessServer(t *testing.T, pool *pgxpool.Pool, mr *miniredis.Miniredis) *testEnv {
	t.Helper()

	ctx := context.Background()
	env := &testEnv{pool: pool, redis: mr}

	port := findFreePort(t)
	cfg := serverConfig(port)
	cfg.RedisURL = "redis://" + mr.Addr()
	env.cfg = cfg

	env.queries = database.New(pool)
	denyList := auth.NewDatabaseDenyList(env.queries)

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
		t.Fatalf("Failed to create issuer: %v", err)
	}

	hasher, err := crypto.NewVoterHasher("integration-pepper")
	if err != nil {
		t.Fatalf("Failed to create voter hasher: %v", err)
	}

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	newLimiter := func(name string, max int, window time.Duration, msg string) *ratelimit.Limiter {
		l, err := ratelimit.New(ratelimit.Config{Name: name, Max: max, Window: window, Message: msg},
			ratelimit.RedisStoreFactory(redisClient))
		if err != nil {
			t.Fatalf("Failed to create %s limiter: %v", name, err)
		}
		return l
	}

	env.fake = contracttest.New(contract.MustLoadABI(cfg.ContractABI))
	chainClient, err := contracttest.NewClient(env.fake)
	if err != nil {
		t.Fatalf("Failed to create contract client: %v", err)
	}

	serverInstance, err := server.NewServer(cfg, server.Dependencies{
		Issuer:      issuer,
		Elections:   election.NewService(chainClient, "https://amoy.polygonscan.com/tx/{txHash}"),
		Hasher:      hasher,
		AuthLimiter: newLimiter("auth", cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow, "Too many login attempts, please try again later"),
		APILimiter:  newLimiter("api", cfg.RateLimitMax, cfg.RateLimitWindow, "Too many requests, please try again later."),
		ReadinessChecks: []handlers.ReadinessCheck{
			handlers.DatabaseCheck(env.queries),
			handlers.ChainCheck(chainClient.Ping),
		},
	}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := serverInstance.Start(serverCtx); err != nil {
			serverDone <- err
		}
	}()

	env.shutdown = func() {
		t.Log("Stopping server...")
		serverCancel()

		select {
		case err := <-serverDone:
			if err != nil {
				t.Logf("❌ Server shutdown with error: %v", err)
			} else {
				t.Log("✅ Server shut down gracefully")
			}
		case <-time.After(5 * time.Second):
			t.Log("⚠️ Server shutdown timeout")
		}
	}

	env.baseURL = fmt.Sprintf("http://localhost:%d", port)
	t.Logf("Starting in-process server at %s", env.baseURL)

	if !waitForServer(t, env.baseURL+"/health/live", 30*time.Second) {
		t.Fatal("Server failed to start within timeout")
	}

	t.Log("✅ Server started")
	return env
}

func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	client := &http.Client{Timeout: 1 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// Test database configuration

type databaseConfig struct {
	userAndPassword string
	dbname          string
	host            string
	port            int
}

func (d *databaseConfig) connectionURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=disable",
		d.userAndPassword, d.host, d.port, d.dbname)
}

func (d *databaseConfig) WithDatabase(dbname string) *databaseConfig {
	return &databaseConfig{
		userAndPassword: d.userAndPassword,
		host:            d.host,
		port:            d.port,
		dbname:          dbname,
	}
}

func localDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "evote-dev",
		dbname:          "tmp_evote_integration_test",
		host:            "localhost",
		port:            15433,
	}
}

func ciDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "postgres:postgres",
		dbname:          "tmp_evote_integration_test",
		host:            "localhost",
		port:            5432,
	}
}

// setupTestDatabase creates an empty test db, applies migrations and returns a connection pool.
// It uses the github actions postgres service when GITHUB_ACTIONS=true and the docker compose database otherwise.
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	cfg := localDatabaseConfig()
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		cfg = ciDatabaseConfig()
	}

	// the admin pool stays open until the test database has been dropped
	postgresURL := cfg.WithDatabase("postgres").connectionURL()
	postgresPool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		t.Fatalf("Unable to create postgres connection pool: %v", err)
	}
	if err := postgresPool.Ping(ctx); err != nil {
		postgresPool.Close()
		t.Fatalf("Can't ping PostgreSQL server %s: %v", postgresURL, err)
	}

	if _, err := postgresPool.Exec(ctx, "DROP DATABASE IF EXISTS "+cfg.dbname); err != nil {
		t.Fatalf("DROP DATABASE IF EXISTS failed: %v", err)
	}
	if _, err := postgresPool.Exec(ctx, "CREATE DATABASE "+cfg.dbname); err != nil {
		t.Fatalf("CREATE DATABASE failed: %v", err)
	}

	t.Cleanup(func() {
		postgresPool.Close()
	})
	t.Cleanup(func() {
		if _, err := postgresPool.Exec(ctx, "DROP DATABASE IF EXISTS "+cfg.dbname+" WITH (FORCE)"); err != nil {
			t.Errorf("Failed to drop test database: %v", err)
		}
	})

	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.connectionURL(),
		MaxConns:        4,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		PingTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, testLogger()); err != nil {
		t.Fatalf("Failed to apply database migrations: %v", err)
	}

	t.Logf("Database ready: %s", cfg.dbname)
	return pool
}
