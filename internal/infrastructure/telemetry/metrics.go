package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultMetricsInterval = time.Minute

// MeterProvider exports ledger metrics over OTLP. A disabled provider hands
// out meters from the global provider, which is a no-op unless replaced.
type MeterProvider struct {
	sdk    *sdkmetric.MeterProvider
	logger *zap.Logger
}

// NewMeterProvider starts periodic metric export when both Enabled and
// MetricsEnabled are set.
func NewMeterProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled || !cfg.MetricsEnabled {
		logger.Info("Metrics export disabled")
		return mp, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		grpcExporterOptions(cfg, otlpmetricgrpc.WithEndpoint, otlpmetricgrpc.WithInsecure)...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	mp.sdk = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.sdk)

	logger.Info("Metrics export enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("interval", interval),
	)
	return mp, nil
}

// Shutdown pushes the last collection and stops the reader.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return shutdownSignal(ctx, "metrics", mp.logger, mp.sdk.Shutdown)
}

func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.sdk == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.sdk.Meter(name, opts...)
}

func (mp *MeterProvider) IsEnabled() bool {
	return mp.sdk != nil
}

// Instruments declares instruments on one meter. The first failure is kept
// for Err and the failed instrument is replaced with a no-op, so a
// constructor can declare everything and check once at the end.
type Instruments struct {
	meter metric.Meter
	err   error
}

// NewInstruments fails with errMeterNil when meter is nil.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	if meter == nil {
		return nil, errMeterNil
	}
	return &Instruments{meter: meter}, nil
}

func (in *Instruments) fail(kind, name string, err error) {
	if in.err == nil {
		in.err = fmt.Errorf("create %s %s: %w", kind, name, err)
	}
}

// Counter is a monotonic integer sum.
func (in *Instruments) Counter(name, description, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("counter", name, err)
		return noop.Int64Counter{}
	}
	return c
}

// AmountCounter is a monotonic sum of money amounts.
func (in *Instruments) AmountCounter(name, description string) metric.Float64Counter {
	c, err := in.meter.Float64Counter(name, metric.WithDescription(description), metric.WithUnit("{currency}"))
	if err != nil {
		in.fail("counter", name, err)
		return noop.Float64Counter{}
	}
	return c
}

// UpDownCounter tracks a level that moves both ways, such as in-flight work.
func (in *Instruments) UpDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("updown counter", name, err)
		return noop.Int64UpDownCounter{}
	}
	return c
}

// Histogram uses bounds as explicit buckets when given.
func (in *Instruments) Histogram(name, description, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail("histogram", name, err)
		return noop.Float64Histogram{}
	}
	return h
}

// Gauge records the last sampled value.
func (in *Instruments) Gauge(name, description, unit string) metric.Int64Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("gauge", name, err)
		return noop.Int64Gauge{}
	}
	return g
}

// Err returns the first instrument creation failure.
func (in *Instruments) Err() error {
	return in.err
}

// With is shorthand for metric.WithAttributes.
func With(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(attrs...)
}

// Attribute keys shared by spans and metrics.
var (
	AttrAgentID = attribute.Key("agent_id")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrWarehouse      = attribute.Key("warehouse")
	AttrStockOperation = attribute.Key("stock.operation")
	AttrProductID      = attribute.Key("product_id")
)

// Latency buckets in seconds.
var (
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	// ResponseSizeBuckets are in bytes.
	ResponseSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000}
)
