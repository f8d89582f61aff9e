package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"techwire-be/internal/config"
	"techwire-be/internal/db"
	"techwire-be/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// migrator is the slice of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
}

type zapMigrateLogger struct {
	log *zap.SugaredLogger
}

func (l zapMigrateLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }
func (l zapMigrateLogger) Verbose() bool                  { return false }

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	dsn := pflag.String("dsn", "", "postgres URL (defaults to the DB_* environment)")
	path := pflag.String("path", "migrations", "directory holding the migration files")
	mode := pflag.String("mode", "up", "up, down or version")
	steps := pflag.Int("steps", 0, "apply n steps instead of all (negative rolls back)")
	pflag.Parse()

	if *dsn == "" {
		*dsn = db.DSN(cfg)
	}

	m, err := migrate.New("file://"+*path, *dsn)
	if err != nil {
		log.Fatal("failed to open migrations", zap.Error(err))
	}
	m.Log = zapMigrateLogger{log: log.Sugar()}
	defer m.Close()

	if err := run(m, *mode, *steps, os.Stdout); err != nil {
		log.Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func run(m migrator, mode string, steps int, out io.Writer) error {
	var err error
	switch {
	case mode == "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		if verr != nil {
			return verr
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)
		return nil
	case steps != 0:
		err = m.Steps(steps)
	case mode == "up":
		err = m.Up()
	case mode == "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'version')", mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "no change")
		return nil
	}
	return err
}
