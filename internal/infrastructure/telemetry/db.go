package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls query instrumentation.
type DBConfig struct {
	// Tracing registers otelgorm so every statement gets a span.
	Tracing bool
	// LogFullSQL keeps bound variables in span statements. Dev only.
	LogFullSQL bool
	// DBSystem is reported as db.system (sqlite or postgresql).
	DBSystem string
	// SlowQueryThreshold marks spans, counts and warns above it (default: 200ms).
	SlowQueryThreshold time.Duration
	// PoolStatsInterval is how often pool gauges are sampled (default: 15s).
	PoolStatsInterval time.Duration
}

func (c DBConfig) withDefaults() DBConfig {
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
	if c.PoolStatsInterval <= 0 {
		c.PoolStatsInterval = 15 * time.Second
	}
	if c.DBSystem == "" {
		c.DBSystem = "postgresql"
	}
	return c
}

// DBMetrics holds the query and connection pool instruments.
type DBMetrics struct {
	queryTotal         metric.Int64Counter
	queryDuration      metric.Float64Histogram
	slowQueryTotal     metric.Int64Counter
	poolConnections    metric.Int64Gauge
	poolConnectionsMax metric.Int64Gauge
}

func NewDBMetrics(meter metric.Meter) (*DBMetrics, error) {
	in, err := NewInstruments(meter)
	if err != nil {
		return nil, err
	}
	m := &DBMetrics{
		queryTotal:         in.Counter("db_query_total", "Database statements by operation", "{query}"),
		queryDuration:      in.Histogram("db_query_duration_seconds", "Database statement latency", "s", DBDurationBuckets...),
		slowQueryTotal:     in.Counter("db_slow_query_total", "Statements slower than the configured threshold", "{query}"),
		poolConnections:    in.Gauge("db_pool_connections", "Pool connections by state", "{connection}"),
		poolConnectionsMax: in.Gauge("db_pool_connections_max", "Pool connection limit", "{connection}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DBMetrics) recordQuery(ctx context.Context, operation, table string, elapsed time.Duration, slow bool) {
	op := With(AttrDBOperation.String(operation))
	m.queryTotal.Add(ctx, 1, op)
	m.queryDuration.Record(ctx, elapsed.Seconds(), op)
	if slow {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Add(ctx, 1, With(AttrDBTable.String(table)))
	}
}

func (m *DBMetrics) recordPool(ctx context.Context, stats sql.DBStats) {
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	for state, n := range map[string]int{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
	} {
		m.poolConnections.Record(ctx, int64(n), With(AttrDBState.String(state)))
	}
}

// QueryInstrumentation is a GORM plugin timing every statement. It feeds
// DBMetrics when set, annotates the active span and warns on slow queries.
type QueryInstrumentation struct {
	config  DBConfig
	metrics *DBMetrics
	logger  *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ gorm.Plugin = (*QueryInstrumentation)(nil)

// NewQueryInstrumentation creates the plugin. metrics may be nil.
func NewQueryInstrumentation(cfg DBConfig, metrics *DBMetrics, logger *zap.Logger) *QueryInstrumentation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryInstrumentation{
		config:  cfg.withDefaults(),
		metrics: metrics,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Name implements gorm.Plugin
func (p *QueryInstrumentation) Name() string {
	return "ledger:query_instrumentation"
}

// Initialize implements gorm.Plugin
func (p *QueryInstrumentation) Initialize(db *gorm.DB) error {
	if p.config.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
		if !p.config.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return err
		}
	}

	cb := db.Callback()
	hooks := []struct {
		name   string
		op     string
		before func(name string, fn func(*gorm.DB)) error
		after  func(name string, fn func(*gorm.DB)) error
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		op := h.op
		if err := h.before("ledger:before_"+h.name, markQueryStart); err != nil {
			return err
		}
		if err := h.after("ledger:after_"+h.name, func(tx *gorm.DB) { p.afterQuery(tx, op) }); err != nil {
			return err
		}
	}

	p.logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", p.config.Tracing),
		zap.Bool("metrics", p.metrics != nil),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThreshold),
	)
	return nil
}

type queryStartKey struct{}

func markQueryStart(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (p *QueryInstrumentation) afterQuery(tx *gorm.DB, operation string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	if operation == "" {
		operation = detectOperationType(tx.Statement.SQL.String())
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	slow := elapsed > p.config.SlowQueryThreshold
	table := tx.Statement.Table

	if p.metrics != nil {
		p.metrics.recordQuery(ctx, operation, table, elapsed, slow)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
		if table != "" {
			span.SetAttributes(attribute.String("db.sql.table", table))
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, tx.Error.Error())
			span.RecordError(tx.Error)
		}
		if slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}

	if slow {
		p.logger.Warn("Slow query",
			zap.String("operation", operation),
			zap.String("table", table),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// StartPoolStatsCollection samples sqlDB pool statistics until Stop or ctx ends.
func (p *QueryInstrumentation) StartPoolStatsCollection(ctx context.Context, sqlDB *sql.DB) {
	if p.metrics == nil || sqlDB == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.config.PoolStatsInterval)
		defer ticker.Stop()

		p.metrics.recordPool(ctx, sqlDB.Stats())
		for {
			select {
			case <-ticker.C:
				p.metrics.recordPool(ctx, sqlDB.Stats())
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends pool stats collection. Safe to call more than once.
func (p *QueryInstrumentation) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
}

func detectOperationType(statement string) string {
	statement = strings.ToUpper(strings.TrimSpace(statement))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(statement, op) {
			return op
		}
	}
	return "OTHER"
}
