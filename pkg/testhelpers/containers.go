// Package testhelpers starts the Postgres and Redis containers shared by
// integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/config"
	"github.com/ekaya-inc/assembly-factory/pkg/database"
)

const (
	// PostgresImage is the PostgreSQL image used for integration tests.
	PostgresImage = "postgres:16-alpine"
	// RedisImage is the Redis image used for integration tests.
	RedisImage = "redis:7-alpine"

	postgresPort nat.Port = "5432/tcp"
	redisPort    nat.Port = "6379/tcp"
)

// shared starts a resource at most once per test binary.
type shared[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (s *shared[T]) get(t *testing.T, what string, start func(context.Context) (T, error)) T {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping %s integration test in short mode (requires Docker)", what)
	}
	s.once.Do(func() {
		s.value, s.err = start(context.Background())
	})
	if s.err != nil {
		t.Fatalf("Failed to start test %s: %v", what, s.err)
	}
	return s.value
}

// startContainer runs req and returns the host and mapped port of port.
func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string, int, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to start %s: %w", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get container port: %w", err)
	}
	return container, host, mapped.Int(), nil
}

// TestDB is a migrated Postgres with the core parts seeded.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	Config    config.DatabaseConfig
}

var testDB shared[*TestDB]

// GetTestDB returns the Postgres container shared by every test in the run.
func GetTestDB(t *testing.T) *TestDB {
	return testDB.get(t, "database", startPostgres)
}

func startPostgres(ctx context.Context) (*TestDB, error) {
	cfg := config.DatabaseConfig{
		User:     "factory",
		Password: "test_password",
		Database: "assembly_factory_test",
		SSLMode:  "disable",
	}

	container, host, port, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_DB":       cfg.Database,
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
		},
		// The server restarts once after init scripts; wait for the second line.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, postgresPort)
	if err != nil {
		return nil, err
	}
	cfg.Host, cfg.Port, cfg.MaxConnections = host, port, 5

	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.NewConnection(ctx, database.ConfigFrom(&cfg))
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := db.Migrate(zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{Container: container, DB: db, Config: cfg}, nil
}

// TestRedis is a Redis container for the shared delete confirmer.
type TestRedis struct {
	Container testcontainers.Container
	Config    config.RedisConfig
}

var testRedis shared[*TestRedis]

// GetTestRedis returns the Redis container shared by every test in the run.
func GetTestRedis(t *testing.T) *TestRedis {
	return testRedis.get(t, "redis", startRedis)
}

func startRedis(ctx context.Context) (*TestRedis, error) {
	container, host, port, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        RedisImage,
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, redisPort)
	if err != nil {
		return nil, err
	}
	return &TestRedis{
		Container: container,
		Config:    config.RedisConfig{Host: host, Port: port},
	}, nil
}

// Client connects to the container the way the server does and closes the
// client when the test ends.
func (r *TestRedis) Client(t *testing.T) *redis.Client {
	t.Helper()
	client, err := database.NewRedisClient(context.Background(), &r.Config)
	if err != nil {
		t.Fatalf("Failed to connect to test redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
