package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	Stream   string `env:"REDIS_STREAM, default=bracket_events"`
}

// NewRedisConfigFromEnv returns nil and no error when REDIS_ADDR is unset, in
// which case events are only logged.
func NewRedisConfigFromEnv() (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, nil
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("REDIS_STREAM must not be empty")
	}
	return &cfg, nil
}
