package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/agritoken/stock-adapter/pkg/config"
)

// Config holds the runtime configuration for a service instance.
// It supports environment-based initialization, with sensible defaults.
type Config struct {
	ServiceName string // e.g. "stock-adapter"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // service HTTP port
	MetricsPort int    // prometheus /metrics port

	GatewayBaseURL    string        // ledger gateway REST base URL
	GatewayToken      string        // bearer token for the gateway
	GatewayWSURL      string        // optional transaction feed, empty disables
	LedgerCallTimeout time.Duration // per-call deadline on gateway requests

	TreasuryAccount    string // operator-controlled treasury account id
	TreasurySecretName string // AWS SM secret holding the treasury keys
	AWSRegion          string

	NATSURL     string // empty disables event publishing
	DatabaseURL string // empty disables the audit journal
	RedisAddr   string // empty disables the registry mirror
	RedisDB     int
	MirrorTTL   time.Duration

	RefreshInterval time.Duration
	RateRPS         int
	RateBurst       int

	// AllowTreasuryFallbackSigning gates the testing-only sell path that
	// signs with the operator key when neither counterparty key is supplied.
	AllowTreasuryFallbackSigning bool
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "stock-adapter"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),
		Port:        pkgconfig.GetEnvInt("PORT", 9020),
		MetricsPort: pkgconfig.GetEnvInt("METRICS_PORT", 9021),

		GatewayBaseURL:    pkgconfig.GetEnv("GATEWAY_BASE_URL", "http://ledger-gateway.local"),
		GatewayToken:      pkgconfig.GetEnv("GATEWAY_TOKEN", ""),
		GatewayWSURL:      pkgconfig.GetEnv("GATEWAY_WS_URL", ""),
		LedgerCallTimeout: pkgconfig.GetEnvDuration("LEDGER_CALL_TIMEOUT", 10*time.Second),

		TreasuryAccount:    pkgconfig.GetEnv("TREASURY_ACCOUNT", ""),
		TreasurySecretName: pkgconfig.GetEnv("TREASURY_SECRET_NAME", ""),
		AWSRegion:          pkgconfig.GetEnv("AWS_REGION", "us-east-2"),

		NATSURL:     pkgconfig.GetEnv("NATS_URL", ""),
		DatabaseURL: pkgconfig.GetEnv("DATABASE_URL", ""),
		RedisAddr:   pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:     pkgconfig.GetEnvInt("REDIS_DB", 0),
		MirrorTTL:   pkgconfig.GetEnvDuration("MIRROR_TTL", 1*time.Hour),

		RefreshInterval: pkgconfig.GetEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		RateRPS:         pkgconfig.GetEnvInt("RATE_RPS", 5),
		RateBurst:       pkgconfig.GetEnvInt("RATE_BURST", 10),

		AllowTreasuryFallbackSigning: pkgconfig.GetEnvBool("ALLOW_TREASURY_FALLBACK_SIGNING", false),
	}
}
