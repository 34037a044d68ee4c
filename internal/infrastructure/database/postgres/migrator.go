package postgres

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
)

// Migrator applies schema migrations from a filesystem directory.
type Migrator struct {
	cfg    config.DatabaseConfig
	logger logging.Logger
}

// NewMigrator constructs a Migrator.  logger may be nil.
func NewMigrator(cfg config.DatabaseConfig, logger logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Migrator{cfg: cfg, logger: logger.Named("migrator")}
}

// Up applies all pending migrations.  A database already at the latest
// version is not an error.
func (m *Migrator) Up() error {
	dir := m.cfg.MigrationPath
	if dir == "" {
		dir = "migrations"
	}
	mg, err := migrate.New("file://"+dir, DSN(m.cfg))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create migrator")
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeInternal, "migration failed")
	}

	version, dirty, verr := mg.Version()
	if verr != nil && verr != migrate.ErrNilVersion {
		m.logger.Warn("could not read migration version", logging.Err(verr))
		return nil
	}
	m.logger.Info("migrations applied",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}
