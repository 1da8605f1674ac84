// Command migrate applies the PostgreSQL schema migrations in ./migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const usage = `Ledger schema migrations

Usage:
  migrate [-path dir] [-log-level level] <command> [n]

Commands:
  up           apply every pending migration
  down         roll every migration back
  steps <n>    apply n migrations, negative n rolls back
  version      print the current version
  force <v>    record version v after a failed migration
  list         list migrations in the directory

Connection settings come from config.toml or LEDGER_DATABASE_* variables.
`

var errUsage = errors.New("bad usage")

// command runs against an open migrator; arg is the optional second argument.
type command func(m *migration.Migrator, arg string, log *zap.Logger) error

var commands = map[string]command{
	"up":   func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Down() },
	"steps": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		n, err := strconv.Atoi(arg)
		if err != nil || n == 0 {
			return fmt.Errorf("%w: steps needs a non-zero count, got %q", errUsage, arg)
		}
		return m.Steps(n)
	},
	"force": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: force needs a version, got %q", errUsage, arg)
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	dir := flag.String("path", "", "migrations directory (default ./migrations)")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *level, Format: "console", TimeLayout: "2006-01-02 15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(flag.Args(), migrationsDir(*dir), log)
	_ = logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, dir string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	name, arg := args[0], ""
	if len(args) > 1 {
		arg = args[1]
	}
	log = log.With(zap.String("command", name), zap.String("dir", dir))

	if name == "list" {
		versions, err := migration.Available(dir)
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Println(v)
		}
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("database.driver is %q: SQLite schemas are built by the server on start", cfg.Database.Driver)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info("Running migration")
	return cmd(m, arg, log)
}

// migrationsDir falls back to ./migrations, then to the repo checkout two
// levels above the binary.
func migrationsDir(dir string) string {
	if dir == "" {
		dir = "migrations"
		if _, err := os.Stat(dir); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", "migrations")
				if _, err := os.Stat(candidate); err == nil {
					dir = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
