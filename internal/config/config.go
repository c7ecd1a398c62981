package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	PublicBaseURL        string `env:"PUBLIC_BASE_URL" envDefault:""`
	SessionTTLSeconds    int    `env:"SESSION_TTL_SECONDS" envDefault:"900"`
	SweepIntervalSeconds int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	MaxUploadBytes       int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
