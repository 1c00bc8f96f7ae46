package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/glizzus/readaloud/internal/config"
	"github.com/glizzus/readaloud/internal/datalayer"
	"github.com/glizzus/readaloud/internal/events"
	"github.com/glizzus/readaloud/internal/metrics"
	"github.com/glizzus/readaloud/internal/pipeline"
	"github.com/glizzus/readaloud/internal/repository"
)

// stack holds the optional services configured through the environment.
type stack struct {
	options []pipeline.Option
	repo    repository.ResponseRepository
	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newResponseRepository(ctx context.Context) (repository.ResponseRepository, func(), error) {
	pgConfig, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load postgres config: %w", err)
	}
	if pgConfig == nil {
		slog.Debug("POSTGRES_HOST not set, keeping responses in memory")
		return repository.NewMemoryResponseRepository(), func() {}, nil
	}

	pool, err := datalayer.NewPostgresPool(ctx, pgConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repository.NewPostgresResponseRepository(pool), pool.Close, nil
}

func newStack(ctx context.Context) (_ *stack, err error) {
	s := &stack{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	repo, closeRepo, err := newResponseRepository(ctx)
	if err != nil {
		return nil, err
	}
	s.repo = repo
	s.closers = append(s.closers, closeRepo)

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load redis config: %w", err)
	}
	if redisConfig != nil {
		publisher, err := events.NewRedisPublisherFromConfig(ctx, redisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("failed to close redis client", slog.Any("error", err))
			}
		})
		s.options = append(s.options, pipeline.WithPublisher(publisher))
	} else {
		s.options = append(s.options, pipeline.WithPublisher(&events.LogPublisher{}))
	}

	archiveEnabled, err := config.ArchiveEnabled()
	if err != nil {
		return nil, fmt.Errorf("failed to read ARCHIVE_ENABLED: %w", err)
	}
	if archiveEnabled {
		minioConfig, err := config.NewMinioConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load minio config: %w", err)
		}
		storage, err := datalayer.NewMinioStorage(minioConfig)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", minioConfig.Bucket, err)
		}
		s.options = append(s.options, pipeline.WithArchive(storage))
	}

	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics config: %w", err)
	}
	s.options = append(s.options, pipeline.WithMetrics(metrics.New(nil)))
	if metricsConfig.Addr != "" {
		server := &http.Server{
			Addr:              metricsConfig.Addr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		s.closers = append(s.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		})
	}

	return s, nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	return mux
}
