package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type CaptureConfig struct {
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg"`
	InputFormat string `env:"CAPTURE_INPUT_FORMAT, default=pulse"`
	Device      string `env:"CAPTURE_DEVICE, default=default"`
	Channels    int    `env:"CAPTURE_CHANNELS, default=1"`
	Bitrate     int    `env:"CAPTURE_BITRATE, default=64000"`
}

func NewCaptureConfigFromEnv() (*CaptureConfig, error) {
	var cfg CaptureConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("CAPTURE_CHANNELS must be 1 or 2, got %d", cfg.Channels)
	}
	if cfg.Bitrate <= 0 {
		return nil, fmt.Errorf("CAPTURE_BITRATE must be positive, got %d", cfg.Bitrate)
	}
	return &cfg, nil
}
