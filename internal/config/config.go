package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
// Matching behavior (lines, tolerances, feed selection) lives in the
// Profile so operators can version it alongside their schedule files.
type Config struct {
	Port         int
	MetricsAddr  string
	DBPath       string
	ProfilePath  string
	SchedulePath string // optional schedule to load at startup

	NATSURL     string // empty disables publishing
	NATSSubject string

	Profile Profile
}

// Load reads configuration from environment variables with defaults.
// A .env file is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         envInt("GEOMATCHING_PORT", 8080),
		MetricsAddr:  envStr("GEOMATCHING_METRICS_ADDR", ""),
		DBPath:       envStr("GEOMATCHING_DB_PATH", "./geomatching.db"),
		ProfilePath:  envStr("GEOMATCHING_PROFILE", ""),
		SchedulePath: envStr("GEOMATCHING_SCHEDULE", ""),
		NATSURL:      envStr("GEOMATCHING_NATS_URL", ""),
		NATSSubject:  envStr("GEOMATCHING_NATS_SUBJECT", "geomatching.matches"),
	}

	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Profile = *profile
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
