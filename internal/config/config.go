package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/ethereum/go-ethereum/common"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=3001"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=5m"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,default=4m"`
	MaxRequestSize        int64         `env:"MAX_REQUEST_SIZE,default=65536"`
	AllowedOrigins        []string      `env:"ALLOWED_ORIGINS,separator=|"`

	// client identity and token settings
	AppID                   string        `env:"APP_ID,required=true"`
	AppSecret               string        `env:"APP_SECRET,required=true"`
	JWTAccessSecret         string        `env:"JWT_ACCESS_SECRET,required=true"`
	JWTRefreshSecret        string        `env:"JWT_REFRESH_SECRET,required=true"`
	AccessTokenTTL          time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL         time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	TokenIssuer             string        `env:"TOKEN_ISSUER,default=evote-gateway"`
	RevocationPurgeInterval time.Duration `env:"REVOCATION_PURGE_INTERVAL,default=1h"`

	// rate limits - a max of 0 disables the limiter
	RateLimitStore      string        `env:"RATE_LIMIT_STORE,default=memory"`
	RedisURL            string        `env:"REDIS_URL"`
	RateLimitMax        int           `env:"RATE_LIMIT_MAX,default=100"`
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW,default=15m"`
	AuthRateLimitMax    int           `env:"AUTH_RATE_LIMIT_MAX,default=5"`
	AuthRateLimitWindow time.Duration `env:"AUTH_RATE_LIMIT_WINDOW,default=15m"`

	// blockchain settings
	RPCURL           string        `env:"RPC_URL,required=true"`
	PrivateKey       string        `env:"PRIVATE_KEY,required=true"`
	ContractAddress  string        `env:"CONTRACT_ADDRESS,required=true"`
	ContractABI      string        `env:"CONTRACT_ABI,default=demographic"`
	ChainID          int64         `env:"CHAIN_ID,default=0"`
	RPCCallTimeout   time.Duration `env:"RPC_CALL_TIMEOUT,default=15s"`
	TxConfirmTimeout time.Duration `env:"TX_CONFIRM_TIMEOUT,default=3m"`
	ExplorerTxURL    string        `env:"EXPLORER_TX_URL,default=https://amoy.polygonscan.com/tx/{txHash}"`

	// voter identity hashing
	SecretPhrase string `env:"SECRET_PHRASE,required=true"`

	// route classification
	PublicResultsRequireAuth bool `env:"PUBLIC_RESULTS_REQUIRE_AUTH,default=true"`

	// database settings - the database is optional and only used for the token deny list
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
}

// ClientEnvironment configures the evote-client CLI.
type ClientEnvironment struct {
	Environment   string        `env:"ENVIRONMENT,default=dev"`
	LogLevel      string        `env:"LOG_LEVEL,default=info"`
	GatewayURL    string        `env:"GATEWAY_URL,default=http://localhost:3001"`
	AppID         string        `env:"APP_ID"`
	AppSecret     string        `env:"APP_SECRET"`
	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT,default=5m"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validRateLimitStores = map[string]bool{
	"memory": true,
	"redis":  true,
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil

}

// NewClientConfig loads the CLI client settings from the environment
func NewClientConfig() (*ClientEnvironment, error) {
	var cfg ClientEnvironment

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}
	if !validEnvs[cfg.Environment] {
		return nil, fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	return &cfg, nil
}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1")
	}

	// go-env only checks that required variables are set, not that they are non-empty
	required := map[string]string{
		"APP_ID":             cfg.AppID,
		"APP_SECRET":         cfg.AppSecret,
		"JWT_ACCESS_SECRET":  cfg.JWTAccessSecret,
		"JWT_REFRESH_SECRET": cfg.JWTRefreshSecret,
		"RPC_URL":            cfg.RPCURL,
		"PRIVATE_KEY":        cfg.PrivateKey,
		"SECRET_PHRASE":      cfg.SecretPhrase,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	// token settings
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be different")
	}
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be greater than 0")
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must be longer than ACCESS_TOKEN_TTL (%s)",
			cfg.RefreshTokenTTL, cfg.AccessTokenTTL)
	}

	// rate limits
	if !validRateLimitStores[cfg.RateLimitStore] {
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s", cfg.RateLimitStore)
	}
	if cfg.RateLimitStore == "redis" && cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_STORE is redis")
	}
	if cfg.RateLimitMax > 0 && cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be greater than 0")
	}
	if cfg.AuthRateLimitMax > 0 && cfg.AuthRateLimitWindow <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_WINDOW must be greater than 0")
	}

	// blockchain settings
	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("CONTRACT_ADDRESS is not a valid hex address: %s", cfg.ContractAddress)
	}
	if cfg.ChainID < 0 {
		return fmt.Errorf("CHAIN_ID must be 0 or greater")
	}
	if cfg.RPCCallTimeout <= 0 || cfg.TxConfirmTimeout <= 0 {
		return fmt.Errorf("RPC_CALL_TIMEOUT and TX_CONFIRM_TIMEOUT must be greater than 0")
	}
	if !strings.Contains(cfg.ExplorerTxURL, "{txHash}") {
		return fmt.Errorf("EXPLORER_TX_URL must contain the {txHash} placeholder")
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	return nil
}
