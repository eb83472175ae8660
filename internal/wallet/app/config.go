package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/telewallet/telewallet/internal/wallet/initdata"
	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/pkg/jwtx"
)

type Config struct {
	BotToken string // Required: Telegram bot token, also the initData signing secret

	DatabaseFile    string        // Optional: path to SQLite database file (default: ./wallet.db)
	AuthMaxAge      time.Duration // Optional: initData freshness window (default: 24h)
	PinMaxAttempts  int           // Optional: failures before lockout (default: 3)
	PinLockDuration time.Duration // Optional: lockout duration (default: 5m)
	SessionTTL      time.Duration // Optional: session token lifetime (default: 15m)
	SessionSecret   string        // Optional: session signing secret (default: derived from BotToken)
	SeedSecret      string        // Optional: seed sealing secret (default: derived from BotToken)
	CorsOrigin      string        // Optional: allowed CORS origin (default: *)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	// Local development keeps its settings in a .env file; absence is fine.
	_ = godotenv.Load()

	return Config{
		BotToken: os.Getenv("BOT_TOKEN"),

		DatabaseFile:    getEnvOrDefault("DATABASE_FILE", "wallet.db"),
		AuthMaxAge:      getEnvDurationOrDefault("AUTH_MAX_AGE", initdata.DefaultMaxAge),
		PinMaxAttempts:  getEnvIntOrDefault("PIN_MAX_ATTEMPTS", service.DefaultPinMaxAttempts),
		PinLockDuration: getEnvDurationOrDefault("PIN_LOCK_DURATION", service.DefaultPinLockDuration),
		SessionTTL:      getEnvDurationOrDefault("SESSION_TTL", jwtx.DefaultSessionTTL),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SeedSecret:      os.Getenv("SEED_SECRET"),
		CorsOrigin:      getEnvOrDefault("CORS_ORIGIN", "*"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Duration syntax first (e.g. "24h", "5m", "90s").
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds, matching how the environment expressed
	// these windows historically.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
