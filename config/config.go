// Package config loads CLI configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the environment-driven client configuration.
type Config struct {
	// BaseURL is the API root.
	BaseURL string `env:"HABITSYNC_API_URL,default=https://api.weighthabit.com/api"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `env:"HABITSYNC_TIMEOUT,default=10s"`
	// DataDir holds the bbolt database.
	DataDir string `env:"HABITSYNC_DATA_DIR,default=./data"`
	// Rollback reverses optimistic mutations when the confirming call fails.
	Rollback bool `env:"HABITSYNC_ROLLBACK,default=false"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding environment: %w", err)
	}
	return cfg, nil
}
