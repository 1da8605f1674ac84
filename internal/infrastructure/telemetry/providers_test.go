package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := Config{ServiceName: "ledger-test", MetricsEnabled: true, LogsEnabled: true}

	tp, err := NewTracerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
	assert.False(t, lp.ZapCore("ledger", zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestProviders_SignalSwitches(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Enabled: true, CollectorEndpoint: "localhost:4317", Insecure: true, ServiceName: "ledger-test"}

	mp, err := NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled(), "metrics need their own switch")

	lp, err := NewLoggerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled(), "logs need their own switch")
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		Insecure:          true,
		ServiceName:       "ledger-test",
		SamplingRatio:     0.5,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("ledger-test").Start(ctx, "op")
	span.End()
	_ = tp.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestNewResource_DefaultVersion(t *testing.T) {
	res, err := newResource(Config{ServiceName: "ledger-test"})
	require.NoError(t, err)

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "ledger-test", values["service.name"])
	assert.Equal(t, "dev", values["service.version"])
}

func TestLoggerProvider_ZapCore(t *testing.T) {
	disabled := &LoggerProvider{}
	assert.False(t, disabled.ZapCore("ledger", zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))

	enabled := &LoggerProvider{provider: sdklog.NewLoggerProvider()}
	t.Cleanup(func() { _ = enabled.provider.Shutdown(context.Background()) })
	core := enabled.ZapCore("ledger", zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.False(t, core.Enabled(zapcore.DebugLevel))
}
