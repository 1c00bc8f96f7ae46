// Package e2e provides shared fixtures for end-to-end tests of the capture
// pipeline.
package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glizzus/readaloud/internal/datalayer"
	"github.com/glizzus/readaloud/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	pgOnce            sync.Once
	postgresContainer *postgres.PostgresContainer
	pgConnStr         string
	pgStartErr        error
	pgWG              sync.WaitGroup

	redisOnce      sync.Once
	redisContainer *tcredis.RedisContainer
	redisConnStr   string
	redisStartErr  error
	redisWG        sync.WaitGroup
)

// UsePostgres provisions or reuses a migrated Postgres container. The
// database is shared across tests; do not expect a clean state.
func UsePostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		postgresContainer, pgStartErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("readaloud"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if pgStartErr != nil {
			return
		}
		pgConnStr, pgStartErr = postgresContainer.ConnectionString(ctx)
		if pgStartErr != nil {
			return
		}

		pool, err := pgxpool.New(ctx, pgConnStr)
		if err != nil {
			pgStartErr = err
			return
		}
		defer pool.Close()

		pgStartErr = datalayer.MigratePostgres(pool)
	})

	if pgStartErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgStartErr)
	}
	pgWG.Add(1)
	t.Cleanup(pgWG.Done)

	return pgConnStr
}

// GetRepository connects a response repository to connStr without touching
// the schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresResponseRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresResponseRepository(pool)
}

// UseRedis provisions or reuses a Redis container and returns a client for
// it.
func UseRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisStartErr = tcredis.Run(ctx, "redis:7")
		if redisStartErr != nil {
			return
		}
		redisConnStr, redisStartErr = redisContainer.ConnectionString(ctx)
	})

	if redisStartErr != nil {
		t.Fatalf("failed to start redis container: %v", redisStartErr)
	}
	opts, err := redis.ParseURL(redisConnStr)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	client := redis.NewClient(opts)

	redisWG.Add(1)
	t.Cleanup(func() {
		client.Close()
		redisWG.Done()
	})
	return client
}

func TerminatePostgresForE2E() {
	pgWG.Wait()
	if postgresContainer != nil {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}

func TerminateRedisForE2E() {
	redisWG.Wait()
	if redisContainer != nil {
		if err := redisContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("failed to terminate redis container: %v", err)
		}
	}
}
