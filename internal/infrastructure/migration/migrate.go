// Package migration applies the PostgreSQL schema under migrations/ with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator moves the schema between versions.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New binds the migration files in dir to an open PostgreSQL connection.
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL(dir), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("load migrations from %s: %w", dir, err)
	}
	m.Log = zapMigrateLogger{log.Named("migrate")}
	return &Migrator{m: m, log: log}, nil
}

// zapMigrateLogger satisfies migrate.Logger.
type zapMigrateLogger struct{ log *zap.Logger }

func (l zapMigrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l zapMigrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}

// run treats ErrNoChange as success and logs the version reached.
func (m *Migrator) run(action string, step func() error) error {
	err := step()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("Schema unchanged", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated", zap.String("action", action), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (m *Migrator) Up() error { return m.run("up", m.m.Up) }

func (m *Migrator) Down() error { return m.run("down", m.m.Down) }

// Steps moves n versions; negative n rolls back.
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.m.Steps(n) })
}

// Version is 0 when nothing has been applied. dirty means a migration failed
// half way and Force is needed.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clean without running anything.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Available lists the versions found in dir, ascending.
func Available(dir string) ([]uint, error) {
	src, err := (&file.File{}).Open(sourceURL(dir))
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	defer src.Close()

	versions := []uint{}
	v, err := src.First()
	for err == nil {
		versions = append(versions, v)
		v, err = src.Next(v)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	return versions, nil
}

func sourceURL(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return "file://" + filepath.ToSlash(dir)
}
