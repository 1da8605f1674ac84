//go:build integration

// Package integration runs the ledger against real PostgreSQL and Redis
// containers. Run with: go test -tags integration ./tests/integration/...
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stickroom/ledger/internal/infrastructure/cache"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/migration"
	"github.com/stickroom/ledger/internal/infrastructure/persistence"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"
)

// PostgresLedger is a migrated PostgreSQL ledger in its own container
type PostgresLedger struct {
	*testutil.LedgerDB
	Database *persistence.Database
	Config   config.DatabaseConfig
}

// NewPostgresLedger starts PostgreSQL, applies the SQL migrations from
// migrations/ and opens the ledger through the production driver path.
func NewPostgresLedger(t *testing.T) *PostgresLedger {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         "ledger",
		Password:     "ledger",
		DBName:       "ledger_test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		MaxRetries:   3,
	}
	db, err := persistence.Open(&cfg)
	require.NoError(t, err, "open ledger database")
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrationsPath(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(), "apply migrations")

	return &PostgresLedger{
		LedgerDB: testutil.WrapLedgerDB(db.DB),
		Database: db,
		Config:   cfg,
	}
}

// NewRedis starts a Redis container and returns a connected client
func NewRedis(t *testing.T) (*redis.Client, config.RedisConfig) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	cfg := config.RedisConfig{
		Enabled:     true,
		Host:        host,
		Port:        port.Int(),
		LockTTL:     5 * time.Second,
		LockRetries: 3,
		LockBackoff: 20 * time.Millisecond,
	}
	client, err := cache.NewRedisClient(ctx, cfg)
	require.NoError(t, err, "connect redis at "+host+":"+strconv.Itoa(port.Int()))
	t.Cleanup(func() { _ = client.Close() })
	return client, cfg
}

// migrationsPath walks up from this file to the repository's migrations/
func migrationsPath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir := filepath.Dir(file)
	for range 4 {
		candidate := filepath.Join(dir, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("migrations directory not found")
	return ""
}
