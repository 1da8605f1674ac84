package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	appaudit "github.com/stickroom/ledger/internal/application/audit"
	appbonus "github.com/stickroom/ledger/internal/application/bonus"
	appcatalog "github.com/stickroom/ledger/internal/application/catalog"
	appidentity "github.com/stickroom/ledger/internal/application/identity"
	appreport "github.com/stickroom/ledger/internal/application/report"
	appsales "github.com/stickroom/ledger/internal/application/sales"
	appstock "github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/cache"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/event"
	"github.com/stickroom/ledger/internal/infrastructure/lock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/infrastructure/persistence"
	"github.com/stickroom/ledger/internal/infrastructure/scheduler"
	"github.com/stickroom/ledger/internal/infrastructure/telemetry"
	"github.com/stickroom/ledger/internal/interfaces/http/handler"
	"github.com/stickroom/ledger/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// token issuance is limited per client address
const (
	tokenRequestsPerWindow = 30
	tokenRequestWindow     = time.Minute
	slowRequestThreshold   = 2 * time.Second
)

// app owns everything main has to shut down
type app struct {
	log            *zap.Logger
	engine         *gin.Engine
	db             *persistence.Database
	redis          *redis.Client
	bus            *event.Bus
	business       *telemetry.BusinessMetrics
	queries        *telemetry.QueryInstrumentation
	tokenLimiter   *middleware.RateLimiter
	scheduler      *scheduler.Scheduler
	tracerProvider *telemetry.TracerProvider
	meterProvider  *telemetry.MeterProvider
	logProvider    *telemetry.LoggerProvider
	cancel         context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config, tcfg telemetry.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}
	ctx, a.cancel = context.WithCancel(ctx)

	var err error
	if a.tracerProvider, err = telemetry.NewTracerProvider(ctx, tcfg, log); err != nil {
		return nil, err
	}
	if a.meterProvider, err = telemetry.NewMeterProvider(ctx, tcfg, log); err != nil {
		return nil, err
	}
	meter := a.meterProvider.Meter(tcfg.ServiceName)

	if err := a.openDatabase(ctx, cfg, meter, log); err != nil {
		return nil, err
	}

	tx := persistence.NewGormTransactionScope(a.db.DB,
		persistence.WithMaxRetries(cfg.Database.MaxRetries),
		persistence.WithScopeLogger(log),
	)
	repos := persistence.NewRepositories(a.db.DB)

	locker, revocations, idempotency, err := a.connectRedis(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.bus = event.NewBus(log)
	a.bus.Subscribe(event.LogEvents(log))
	if a.business, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: meter, Logger: log}); err != nil {
		return nil, fmt.Errorf("business metrics: %w", err)
	}
	a.bus.Subscribe(a.business)

	ledger := appstock.NewLedger(log)
	engine := appbonus.NewEngine(tx, repos, a.bus, log)
	seeded, err := engine.SeedDefaults(ctx, bonusTiers(cfg.Ledger.BonusTiers))
	if err != nil {
		return nil, fmt.Errorf("seed bonus rules: %w", err)
	}
	if seeded > 0 {
		log.Info("Seeded bonus rules", zap.Int("count", seeded))
	}

	stockService := appstock.NewService(tx, log)
	if cfg.Scheduler.Enabled {
		if err := a.startScheduler(ctx, cfg.Scheduler, engine, stockService, log); err != nil {
			return nil, err
		}
	} else {
		a.business.StartPeriodicCollection(ctx, func(ctx context.Context) (int, error) {
			report, err := stockService.VerifyConsistency(ctx)
			if err != nil {
				return 0, err
			}
			return len(report.Discrepancies), nil
		}, cfg.Telemetry.MetricsInterval)
	}

	agents := appidentity.NewService(tx, repos, log, appidentity.WithAdminTelegramIDs(cfg.Auth.AdminTelegramIDs...))
	catalogService := appcatalog.NewService(tx, repos, ledger, a.bus, log, appcatalog.Settings{
		DefaultWarehouses:   cfg.Ledger.DefaultWarehouses,
		DefaultCoefficient:  decimal.NewFromFloat(cfg.Ledger.DefaultCoefficient),
		MaxProductsPerBatch: cfg.Ledger.MaxProductsPerBatch,
		SearchLimit:         cfg.Ledger.SearchLimit,
	})
	salesService := appsales.NewService(tx, repos, ledger, engine, a.bus, log,
		appsales.WithProductLocker(locker),
		appsales.WithHistoryDays(cfg.Ledger.HistoryDays),
	)
	auditService := appaudit.NewService(repos)
	reportService := appreport.NewService(repos, time.UTC)
	jwt := auth.NewJWTService(cfg.Auth)

	log.Info("Ledger configured",
		zap.Strings("warehouses", cfg.Ledger.DefaultWarehouses),
		zap.Float64("default_coefficient", cfg.Ledger.DefaultCoefficient),
		zap.String("currency", cfg.Ledger.Currency),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	a.engine = gin.New()
	if err := a.engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}
	a.engine.Use(logger.Recovery(log), middleware.RequestID(log))
	a.engine.Use(middleware.Tracing(tcfg.ServiceName)...)
	a.engine.Use(
		httpMetrics,
		logger.AccessLog(log, logger.WithSkipPaths("/api/v1/health"), logger.WithSlowRequest(slowRequestThreshold)),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	a.tokenLimiter = middleware.NewRateLimiter(tokenRequestsPerWindow, tokenRequestWindow)
	handler.RegisterRoutes(a.engine, handler.Handlers{
		Auth:    handler.NewAuthHandler(agents, jwt, revocations),
		Agents:  handler.NewAgentHandler(agents, revocations, jwt),
		Catalog: handler.NewCatalogHandler(catalogService, auditService, salesService),
		Sales:   handler.NewSalesHandler(salesService),
		Bonus:   handler.NewBonusHandler(engine),
		Report:  handler.NewReportHandler(reportService, stockService, auditService),
		Health:  handler.NewHealthHandler(a.db, Version),
	}, handler.Guards{
		Agent:       middleware.AgentAuth(middleware.AuthConfig{JWTService: jwt, Revocations: revocations, Logger: log}),
		Admin:       middleware.RequireAdmin(),
		ServiceKey:  middleware.RequireServiceKey(cfg.Auth.ServiceKey),
		TokenLimit:  middleware.RateLimit(a.tokenLimiter),
		Idempotency: middleware.Idempotency(idempotency, cfg.HTTP.IdempotencyTTL, log),
	})

	return a, nil
}

func (a *app) openDatabase(ctx context.Context, cfg *config.Config, meter metric.Meter, log *zap.Logger) error {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithConflictClassifier(func(err error) bool {
			return persistence.IsUniqueViolation(err) || persistence.IsTransient(err)
		}),
	)
	db, err := persistence.Open(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.db = db
	log.Info("Database connected", zap.String("driver", db.Driver))

	if db.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
		log.Info("SQLite schema migrated")
	}

	dbMetrics, err := telemetry.NewDBMetrics(meter)
	if err != nil {
		return fmt.Errorf("db metrics: %w", err)
	}
	system := "postgresql"
	if db.Driver == config.DriverSQLite {
		system = "sqlite"
	}
	a.queries = telemetry.NewQueryInstrumentation(telemetry.DBConfig{
		Tracing:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		DBSystem:           system,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, dbMetrics, log)
	if err := db.DB.Use(a.queries); err != nil {
		return fmt.Errorf("query instrumentation: %w", err)
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		a.queries.StartPoolStatsCollection(ctx, sqlDB)
	}
	return nil
}

// startScheduler runs bonus recovery and the stock audit in the background
func (a *app) startScheduler(ctx context.Context, cfg config.SchedulerConfig, engine *appbonus.Engine, stockService *appstock.Service, log *zap.Logger) error {
	sched, err := scheduler.New(scheduler.Config{
		Workers:       cfg.Workers,
		JobTimeout:    cfg.JobTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, log.Named("scheduler"))
	if err != nil {
		return err
	}
	sched.Register(scheduler.TaskBonusRecovery, func(ctx context.Context) error {
		_, err := engine.RecoverPending(ctx)
		return err
	}, cfg.BonusRecoveryInterval)
	sched.Register(scheduler.TaskStockAudit, func(ctx context.Context) error {
		report, err := stockService.VerifyConsistency(ctx)
		if err != nil {
			return err
		}
		a.business.RecordDiscrepancies(ctx, len(report.Discrepancies))
		if !report.Consistent {
			log.Warn("Stock quantities disagree with the stock log",
				zap.Int("products_checked", report.ProductsChecked),
				zap.Any("discrepancies", report.Discrepancies),
			)
		}
		return nil
	}, cfg.StockAuditInterval)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.scheduler = sched
	return nil
}

// connectRedis returns Redis-backed coordination when Redis is enabled and
// single-process fallbacks otherwise.
func (a *app) connectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (appsales.ProductLocker, auth.Revocations, cache.IdempotencyStore, error) {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, using in-process locks and token store")
		return lock.NopLocker{}, auth.NewMemoryRevocations(), cache.NewInMemoryIdempotencyStore(), nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = client
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	return lock.NewRedisLocker(client, cfg.Redis, log),
		auth.NewRedisRevocations(client),
		cache.NewRedisIdempotencyStore(client),
		nil
}

// Close stops background work and flushes telemetry, newest first
func (a *app) Close(ctx context.Context) {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("Scheduler stop failed", zap.Error(err))
		}
	}
	a.cancel()
	if a.tokenLimiter != nil {
		a.tokenLimiter.Stop()
	}
	if a.business != nil {
		a.business.Stop()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.queries != nil {
		a.queries.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Database close failed", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": a.tracerProvider.Shutdown,
		"meter":  a.meterProvider.Shutdown,
		"logs":   a.logProvider.Shutdown,
	} {
		if err := shutdown(ctx); err != nil {
			a.log.Warn("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}
}

// bonusTiers converts the configured seed schedule; Max 0 means unbounded
func bonusTiers(tiers []config.BonusTierConfig) []bonus.Tier {
	if len(tiers) == 0 {
		return bonus.DefaultTiers()
	}
	out := make([]bonus.Tier, 0, len(tiers))
	for _, t := range tiers {
		tier := bonus.Tier{
			Min:     decimal.NewFromFloat(t.Min),
			Percent: decimal.NewFromFloat(t.Percent),
		}
		if t.Max > 0 {
			max := decimal.NewFromFloat(t.Max)
			tier.Max = &max
		}
		out = append(out, tier)
	}
	return out
}
