package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_Usage(t *testing.T) {
	log := zap.NewNop()
	assert.ErrorIs(t, run(nil, t.TempDir(), log), errUsage)
	assert.ErrorIs(t, run([]string{"sideways"}, t.TempDir(), log), errUsage)
}

func TestRun_ListNeedsNoDatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.up.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_init.down.sql"), []byte("SELECT 1;"), 0o600))

	assert.NoError(t, run([]string{"list"}, dir, zap.NewNop()))
}

func TestMigrationsDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, migrationsDir(dir))
	assert.True(t, filepath.IsAbs(migrationsDir("")))
}
