// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins []string

	// Ledger backends.
	LedgerDataDir   string
	EthereumChainID int
	FabricChannel   string
	// Cron spec for the pending-confirmation sweep.
	ConfirmSchedule string

	// Fixed-window login throttle.
	LoginRatePerMinute int

	DevLogging bool
}

func Load() Config {
	return Config{
		Port:               envDefault("SERVICE_PORT", "8080"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:          envDefault("JWT_SECRET", "dev-jwt-secret-key"),
		TokenTTL:           time.Duration(envIntDefault("JWT_TTL_MINUTES", 60)) * time.Minute,
		CORSOrigins:        csvList(envDefault("CORS_ORIGINS", "http://localhost:5174,http://127.0.0.1:5174")),
		LedgerDataDir:      envDefault("LEDGER_DATA_DIR", "./data/ledger"),
		EthereumChainID:    envIntDefault("ETHEREUM_CHAIN_ID", 1337),
		FabricChannel:      envDefault("FABRIC_CHANNEL", "healthchannel"),
		ConfirmSchedule:    envDefault("LEDGER_CONFIRM_SCHEDULE", "@every 5m"),
		LoginRatePerMinute: envIntDefault("LOGIN_IP_RATE_PER_MINUTE", 20),
		DevLogging:         strings.EqualFold(envDefault("ENV", "development"), "development"),
	}
}

func envDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func csvList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
