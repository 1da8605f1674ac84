package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "stickroom-ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "ledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 3, cfg.Database.MaxRetries)
		assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
		assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiration)
		assert.Equal(t, []string{"Олег", "Максим", "Общий"}, cfg.Ledger.DefaultWarehouses)
		assert.Equal(t, 30, cfg.Ledger.HistoryDays)
		assert.Equal(t, 20, cfg.Ledger.SearchLimit)
		require.Len(t, cfg.Ledger.BonusTiers, 4)
		assert.Equal(t, BonusTierConfig{Min: 50000, Max: 100000, Percent: 7}, cfg.Ledger.BonusTiers[1])
		assert.Zero(t, cfg.Ledger.BonusTiers[3].Max)
		assert.True(t, cfg.Scheduler.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.Scheduler.BonusRecoveryInterval)
		assert.Equal(t, time.Hour, cfg.Scheduler.StockAuditInterval)
	})

	t.Run("scheduler can be switched off", func(t *testing.T) {
		t.Setenv("LEDGER_SCHEDULER_ENABLED", "false")
		t.Setenv("LEDGER_SCHEDULER_BONUS_RECOVERY_INTERVAL", "2m")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Scheduler.Enabled)
		assert.Equal(t, 2*time.Minute, cfg.Scheduler.BonusRecoveryInterval)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		t.Setenv("LEDGER_APP_NAME", "test-app")
		t.Setenv("LEDGER_APP_PORT", "9000")
		t.Setenv("LEDGER_DATABASE_DRIVER", "sqlite")
		t.Setenv("LEDGER_DATABASE_PATH", "/tmp/ledger-test.db")
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("LEDGER_DATABASE_MAX_RETRIES", "5")
		t.Setenv("LEDGER_REDIS_ENABLED", "true")
		t.Setenv("LEDGER_AUTH_ADMIN_TELEGRAM_IDS", "111,222")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "/tmp/ledger-test.db", cfg.Database.DSN())
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, 5, cfg.Database.MaxRetries)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, []int64{111, 222}, cfg.Auth.AdminTelegramIDs)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("LEDGER_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects malformed admin ids", func(t *testing.T) {
		t.Setenv("LEDGER_AUTH_ADMIN_TELEGRAM_IDS", "12,abc")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin_telegram_ids")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("LEDGER_APP_ENV", "production")
		t.Setenv("LEDGER_AUTH_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("LEDGER_AUTH_SERVICE_KEY", "bot-service-key")
		t.Setenv("LEDGER_DATABASE_PASSWORD", "secure-password")
		t.Setenv("LEDGER_DATABASE_SSLMODE", "require")
	}

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"requires jwt secret", "LEDGER_AUTH_JWT_SECRET", "", "auth.jwt_secret is required"},
		{"requires long jwt secret", "LEDGER_AUTH_JWT_SECRET", "short", "at least 32 characters"},
		{"requires service key", "LEDGER_AUTH_SERVICE_KEY", "", "auth.service_key is required"},
		{"requires database password", "LEDGER_DATABASE_PASSWORD", "", "database.password is required"},
		{"requires ssl", "LEDGER_DATABASE_SSLMODE", "disable", "sslmode cannot be 'disable'"},
		{"rejects wildcard cors", "LEDGER_HTTP_CORS_ALLOW_ORIGINS", "*", "cors_allow_origins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("sqlite does not require database password", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("LEDGER_DATABASE_DRIVER", "sqlite")
		t.Setenv("LEDGER_DATABASE_PASSWORD", "")

		_, err := Load()
		require.NoError(t, err)
	})
}

func TestValidate_BonusTiers(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	cfg.Ledger.BonusTiers = []BonusTierConfig{{Min: 100, Max: 50, Percent: 5}}
	assert.ErrorContains(t, cfg.validate(), "max must be greater than min")

	cfg.Ledger.BonusTiers = []BonusTierConfig{{Min: 0, Max: 0, Percent: 120}}
	assert.ErrorContains(t, cfg.validate(), "percent must be between 0 and 100")

	cfg.Ledger.BonusTiers = []BonusTierConfig{{Min: -1, Percent: 5}}
	assert.ErrorContains(t, cfg.validate(), "min cannot be negative")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mysql"
	cfg.Scheduler.Workers = -1
	cfg.Telemetry.SamplingRatio = 2

	err := cfg.validate()
	require.Error(t, err)
	for _, want := range []string{"database.driver", "scheduler.workers", "telemetry.sampling_ratio"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_ListsFromEnvironment(t *testing.T) {
	t.Setenv("LEDGER_HTTP_TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")
	t.Setenv("LEDGER_AUTH_ADMIN_TELEGRAM_IDS", "7 8")
	t.Setenv("LEDGER_HTTP_IDEMPOTENCY_TTL", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.HTTP.TrustedProxies)
	assert.Equal(t, []int64{7, 8}, cfg.Auth.AdminTelegramIDs)
	assert.Equal(t, 90*time.Minute, cfg.HTTP.IdempotencyTTL)
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("sqlite uses the file path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, Path: "file::memory:?cache=shared"}
		assert.Equal(t, "file::memory:?cache=shared", cfg.DSN())
	})
}
