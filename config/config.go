// Package config holds environment-driven client configuration.
package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	APIBaseURL   string        `env:"TESSERA_API_URL" env-default:"http://localhost:5000"`
	HTTPTimeout  time.Duration `env:"TESSERA_HTTP_TIMEOUT" env-default:"12s"`
	DebugLogPath string        `env:"TESSERA_DEBUG_LOG" env-default:""`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is Load for program startup: a bad environment is fatal before
// the TUI takes over the terminal.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
