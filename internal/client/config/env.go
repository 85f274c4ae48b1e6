package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by parseEnv.
const (
	envServerAddr     = "TASKHUB_SERVER_ADDR"
	envRequestTimeout = "TASKHUB_REQUEST_TIMEOUT"
	envDatabasePath   = "TASKHUB_DB_PATH"
)

// parseEnv overlays Config with values from the process environment.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win over the file.
func parseEnv(cfg *Config) {
	_ = godotenv.Load() // missing .env is fine

	if v := os.Getenv(envServerAddr); v != "" {
		cfg.ServerEndpointAddr = v
	}
	if v := os.Getenv(envRequestTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv(envDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
}
