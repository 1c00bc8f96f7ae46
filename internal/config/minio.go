package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type MinioConfig struct {
	Endpoint string `env:"MINIO_ENDPOINT, required"`
	Username string `env:"MINIO_USERNAME, required"`
	Password string `env:"MINIO_PASSWORD, required"`
	Bucket   string `env:"MINIO_BUCKET, default=readaloud"`
	UseSSL   bool   `env:"MINIO_USE_SSL, default=false"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	var cfg MinioConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ArchiveEnabled reports whether finished recordings should be kept in
// object storage. Off unless ARCHIVE_ENABLED is true.
func ArchiveEnabled() (bool, error) {
	var cfg struct {
		Enabled bool `env:"ARCHIVE_ENABLED, default=false"`
	}
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return false, err
	}
	return cfg.Enabled, nil
}
