package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// Config is shared by the trace, metric and log providers. Each signal
// exports only when Enabled and its own switch are both set; traces need
// only Enabled.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	SamplingRatio     float64

	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool
}

const shutdownTimeout = 10 * time.Second

// errMeterNil is returned by instrument constructors given no meter.
var errMeterNil = errors.New("telemetry: meter cannot be nil")

// grpcExporterOptions builds the endpoint and transport options shared by the
// three OTLP/gRPC exporters. Each exporter package has its own option type.
func grpcExporterOptions[O any](cfg Config, endpoint func(string) O, insecure func() O) []O {
	opts := []O{endpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, insecure())
	}
	return opts
}

// shutdownSignal flushes one provider within shutdownTimeout.
func shutdownSignal(ctx context.Context, signal string, logger *zap.Logger, shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s provider: %w", signal, err)
	}
	if logger != nil {
		logger.Info("Telemetry provider shut down", zap.String("signal", signal))
	}
	return nil
}

// newResource describes this process. OTEL_RESOURCE_ATTRIBUTES is read
// first so the configured service name and version win.
func newResource(cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName), semconv.ServiceVersion(version)),
	)
	if err != nil {
		return nil, fmt.Errorf("describe telemetry resource: %w", err)
	}
	return res, nil
}

// sampler keeps every trace at ratio 1 and none at 0. In between it
// follows the caller's sampling decision when there is one.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
