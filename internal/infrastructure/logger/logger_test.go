package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("console to stdout", func(t *testing.T) {
		l, err := New(Config{Level: "info", Format: "console"})
		require.NoError(t, err)
		assert.NoError(t, Sync(l))
	})

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.log")
		l, err := New(Config{Level: "debug", Format: "json", Output: path})
		require.NoError(t, err)
		l.Info("sale recorded")
		require.NoError(t, Sync(l))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"msg":"sale recorded"`)
		assert.Contains(t, string(raw), `"level":"info"`)
	})

	t.Run("unwritable file is an error", func(t *testing.T) {
		_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
		assert.Error(t, err)
	})

	t.Run("tee cores receive entries", func(t *testing.T) {
		core, recorded := observer.New(zapcore.InfoLevel)
		l, err := New(Config{Level: "info", Format: "json", Output: "stderr"}, core)
		require.NoError(t, err)

		l.Info("bonus accrued")
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, "bonus accrued", recorded.All()[0].Message)
	})
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	} {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{Env: "production"},
		Log: config.LogConfig{Level: "warn", Format: "console", Output: "stderr"},
	}
	assert.Equal(t, Config{Level: "warn", Format: "json", Output: "stderr"}, FromAppConfig(cfg))

	cfg.App.Env = "development"
	assert.Equal(t, "console", FromAppConfig(cfg).Format)
}
