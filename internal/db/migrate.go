package db

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate aplica las migraciones embebidas pendientes.
func Migrate(databaseURL string, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close()
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("migration close failed", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	return runMigrations(m, logger)
}

// migrator es el subconjunto de *migrate.Migrate que usa runMigrations.
type migrator interface {
	Up() error
	Version() (version uint, dirty bool, err error)
}

// runMigrations aplica Up y exige que la base quede en una version limpia.
func runMigrations(m migrator, logger *zap.Logger) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return oops.Code("MIGRATION_DIRTY").With("version", dirtyErr.Version).Wrap(err)
		}
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	if dirty {
		logger.Error("database schema is dirty", zap.Uint("version", version))
		return oops.Code("MIGRATION_DIRTY").With("version", version).Errorf("schema left dirty at version %d", version)
	}

	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateURL convierte el DSN al esquema pgx5:// que espera golang-migrate.
func migrateURL(databaseURL string) string {
	if rest, found := strings.CutPrefix(databaseURL, "postgres://"); found {
		return "pgx5://" + rest
	}
	if rest, found := strings.CutPrefix(databaseURL, "postgresql://"); found {
		return "pgx5://" + rest
	}
	return databaseURL
}
