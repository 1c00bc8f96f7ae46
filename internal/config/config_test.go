package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/glizzus/readaloud/internal/config"
	"github.com/google/go-cmp/cmp"
)

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestCaptureConfigDefaults(t *testing.T) {
	unsetenv(t, "FFMPEG_PATH", "CAPTURE_INPUT_FORMAT", "CAPTURE_DEVICE", "CAPTURE_CHANNELS", "CAPTURE_BITRATE")
	cfg, err := config.NewCaptureConfigFromEnv()
	if err != nil {
		t.Fatalf("NewCaptureConfigFromEnv returned error: %v", err)
	}

	want := &config.CaptureConfig{
		FFmpegPath:  "ffmpeg",
		InputFormat: "pulse",
		Device:      "default",
		Channels:    1,
		Bitrate:     64000,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("CaptureConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestCaptureConfigRejectsChannels(t *testing.T) {
	t.Setenv("CAPTURE_CHANNELS", "6")
	if _, err := config.NewCaptureConfigFromEnv(); err == nil {
		t.Fatal("expected an error for 6 channels")
	}
}

func TestUploadConfig(t *testing.T) {
	unsetenv(t, "UPLOAD_ENDPOINT")
	if _, err := config.NewUploadConfigFromEnv(); err == nil {
		t.Fatal("expected an error without UPLOAD_ENDPOINT")
	}

	t.Setenv("UPLOAD_ENDPOINT", "http://localhost:8080/transcribe")
	t.Setenv("UPLOAD_TIMEOUT", "30s")
	cfg, err := config.NewUploadConfigFromEnv()
	if err != nil {
		t.Fatalf("NewUploadConfigFromEnv returned error: %v", err)
	}
	if cfg.Endpoint != "http://localhost:8080/transcribe" || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestPostgresConfigOptional(t *testing.T) {
	unsetenv(t, "POSTGRES_HOST")
	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		t.Fatalf("NewPostgresConfigFromEnv returned error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config without POSTGRES_HOST, got %+v", cfg)
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USERNAME", "user")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	unsetenv(t, "POSTGRES_PORT", "POSTGRES_DATABASE", "POSTGRES_SSLMODE")
	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		t.Fatalf("NewPostgresConfigFromEnv returned error: %v", err)
	}

	want := "postgres://user:p%40ss@db:5432/readaloud?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestRedisConfigOptional(t *testing.T) {
	unsetenv(t, "REDIS_ADDR", "REDIS_STREAM")
	cfg, err := config.NewRedisConfigFromEnv()
	if err != nil || cfg != nil {
		t.Fatalf("NewRedisConfigFromEnv() = %+v, %v, want nil, nil", cfg, err)
	}

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err = config.NewRedisConfigFromEnv()
	if err != nil {
		t.Fatalf("NewRedisConfigFromEnv returned error: %v", err)
	}
	if cfg.Stream != "bracket_events" {
		t.Errorf("Stream = %q, want %q", cfg.Stream, "bracket_events")
	}
}

func TestArchiveEnabled(t *testing.T) {
	t.Setenv("ARCHIVE_ENABLED", "true")
	enabled, err := config.ArchiveEnabled()
	if err != nil {
		t.Fatalf("ArchiveEnabled returned error: %v", err)
	}
	if !enabled {
		t.Error("ArchiveEnabled() = false, want true")
	}
}
