// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service's environment-driven settings. A .env file
// is honored via godotenv autoload in main.
type Config struct {
	Port string `env:"WHIST_SERVICE_PORT" envDefault:"8080"`

	// HeartbeatInterval is how long a connection may stay silent before
	// it is treated as disconnected.
	HeartbeatInterval time.Duration `env:"WHIST_HEARTBEAT_INTERVAL" envDefault:"15s"`
	// PingInterval is how often the write pump pings each connection.
	PingInterval time.Duration `env:"WHIST_PING_INTERVAL" envDefault:"30s"`

	// Capacity bounds for created rooms. The [2,6] defaults mirror the
	// client's player-count input; treat them as configuration, not a
	// hard contract.
	MinCapacity int `env:"WHIST_MIN_CAPACITY" envDefault:"2"`
	MaxCapacity int `env:"WHIST_MAX_CAPACITY" envDefault:"6"`

	AllowedOrigins []string `env:"WHIST_ALLOWED_ORIGINS" envDefault:"*"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MinCapacity < 2 || cfg.MaxCapacity < cfg.MinCapacity {
		return Config{}, fmt.Errorf("invalid capacity bounds [%d,%d]", cfg.MinCapacity, cfg.MaxCapacity)
	}
	return cfg, nil
}
