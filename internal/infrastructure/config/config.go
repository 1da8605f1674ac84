// Package config loads the ledger's settings from config.toml, .env and
// LEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "LEDGER"

// Config is the root of config.toml. Every key has a default, so an empty
// environment yields a runnable development setup.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development or production
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the SQLite file.
	Path string `mapstructure:"path"`

	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int `mapstructure:"conn_max_idle_time"` // minutes
	// MaxRetries bounds retries of a unit of work after a serialization
	// failure or deadlock.
	MaxRetries int `mapstructure:"max_retries"`
}

// RedisConfig is optional. When disabled the per-product sale lock, token
// revocations and idempotency keys are kept in process.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockRetries int           `mapstructure:"lock_retries"`
	LockBackoff time.Duration `mapstructure:"lock_backoff"`
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	TokenExpiration time.Duration `mapstructure:"token_expiration"`
	// ServiceKey is the shared secret front-ends present to obtain agent tokens.
	ServiceKey string `mapstructure:"service_key"`
	// AdminTelegramIDs are promoted to admin on first contact. Read
	// separately so "1,2" and "1 2" both work from the environment.
	AdminTelegramIDs []int64 `mapstructure:"-"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	// IdempotencyTTL is how long an Idempotency-Key stays claimed.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// BonusTierConfig is one seed bonus rule. Max 0 means unbounded.
type BonusTierConfig struct {
	Min     float64 `mapstructure:"min"`
	Max     float64 `mapstructure:"max"`
	Percent float64 `mapstructure:"percent"`
}

type LedgerConfig struct {
	DefaultWarehouses   []string          `mapstructure:"default_warehouses"`
	DefaultCoefficient  float64           `mapstructure:"default_coefficient"`
	Currency            string            `mapstructure:"currency"`
	MaxProductsPerBatch int               `mapstructure:"max_products_per_batch"`
	HistoryDays         int               `mapstructure:"history_days"`
	SearchLimit         int               `mapstructure:"search_limit"`
	BonusTiers          []BonusTierConfig `mapstructure:"bonus_tiers"`
}

type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Workers       int           `mapstructure:"workers"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	// BonusRecoveryInterval re-evaluates sales left without a bonus.
	BonusRecoveryInterval time.Duration `mapstructure:"bonus_recovery_interval"`
	// StockAuditInterval compares product quantities with the stock log.
	StockAuditInterval time.Duration `mapstructure:"stock_audit_interval"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP/gRPC, host:port
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults doubles as the list of known keys: viper only consults the
// environment for keys it has seen.
var defaults = map[string]any{
	"app.name": "stickroom-ledger",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverPostgres,
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "ledger",
	"database.sslmode":            "disable",
	"database.path":               "ledger.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.max_retries":        3,

	"redis.enabled":      false,
	"redis.host":         "localhost",
	"redis.port":         6379,
	"redis.password":     "",
	"redis.db":           0,
	"redis.lock_ttl":     10 * time.Second,
	"redis.lock_retries": 20,
	"redis.lock_backoff": 50 * time.Millisecond,

	"auth.jwt_secret":         "",
	"auth.issuer":             "stickroom-ledger",
	"auth.token_expiration":   24 * time.Hour,
	"auth.service_key":        "",
	"auth.admin_telegram_ids": []string{},

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     time.Minute,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    int64(1 << 20),
	// no origin until configured: cross-origin requests are refused
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "X-Service-Key", "Idempotency-Key"},
	"http.trusted_proxies":    []string{},
	"http.idempotency_ttl":    24 * time.Hour,

	"ledger.default_warehouses":     []string{"Олег", "Максим", "Общий"},
	"ledger.default_coefficient":    1.2,
	"ledger.currency":               "EUR",
	"ledger.max_products_per_batch": 1000,
	"ledger.history_days":           30,
	"ledger.search_limit":           20,
	"ledger.bonus_tiers": []map[string]any{
		{"min": 0, "max": 50000, "percent": 5},
		{"min": 50000, "max": 100000, "percent": 7},
		{"min": 100000, "max": 200000, "percent": 10},
		{"min": 200000, "max": 0, "percent": 12},
	},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "stickroom-ledger",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"scheduler.enabled":                 true,
	"scheduler.workers":                 2,
	"scheduler.job_timeout":             5 * time.Minute,
	"scheduler.retry_attempts":          3,
	"scheduler.retry_delay":             time.Minute,
	"scheduler.bonus_recovery_interval": 15 * time.Minute,
	"scheduler.stock_audit_interval":    time.Hour,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads, in rising priority: defaults, config.toml (., ./config or
// /app), a .env file in the working directory, then LEDGER_* variables
// such as LEDGER_DATABASE_PASSWORD.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./config", "/app"} {
		v.AddConfigPath(dir)
	}
	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration with no file and no environment.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	ids, err := parseIDs(v.GetStringSlice("auth.admin_telegram_ids"))
	if err != nil {
		return nil, fmt.Errorf("auth.admin_telegram_ids: %w", err)
	}
	cfg.Auth.AdminTelegramIDs = ids
	return &cfg, nil
}

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.Driver == DriverPostgres || db.Driver == DriverSQLite,
		"database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	check(db.MaxRetries >= 0, "database.max_retries cannot be negative")

	for i, tier := range c.Ledger.BonusTiers {
		check(tier.Min >= 0, "ledger.bonus_tiers[%d].min cannot be negative", i)
		check(tier.Max == 0 || tier.Max > tier.Min, "ledger.bonus_tiers[%d].max must be greater than min", i)
		check(tier.Percent >= 0 && tier.Percent <= 100, "ledger.bonus_tiers[%d].percent must be between 0 and 100", i)
	}
	check(c.Scheduler.Workers >= 0, "scheduler.workers cannot be negative")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)

	if c.IsProduction() {
		check(c.Auth.JWTSecret != "", "auth.jwt_secret is required in production")
		check(c.Auth.JWTSecret == "" || len(c.Auth.JWTSecret) >= 32, "auth.jwt_secret must be at least 32 characters in production")
		check(c.Auth.ServiceKey != "", "auth.service_key is required in production")
		if db.Driver == DriverPostgres {
			check(db.Password != "", "database.password is required in production")
			check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		}
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot be '*' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN is the SQLite path, or a postgres:// URL with escaped credentials.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// parseIDs accepts TOML integer arrays as well as comma or space separated env values
func parseIDs(raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		for _, field := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}
