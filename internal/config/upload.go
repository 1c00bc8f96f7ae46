package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type UploadConfig struct {
	Endpoint string `env:"UPLOAD_ENDPOINT, required"`
	// Timeout bounds a single upload. Zero means no limit.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT, default=0s"`
}

func NewUploadConfigFromEnv() (*UploadConfig, error) {
	var cfg UploadConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
