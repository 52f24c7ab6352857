package database

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/models"
)

// Connect opens the write database and, when configured, a separate
// read-only one. Without a read-only DSN both handles are the same.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, nil, err
	}

	if cfg.ReadOnlyDSN == "" {
		return db, db, nil
	}

	readOnlyDB, err := open(cfg.Driver, cfg.ReadOnlyDSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}
	if err := configurePool(readOnlyDB, cfg); err != nil {
		return nil, nil, err
	}
	return db, readOnlyDB, nil
}

// OpenSQLite opens a sqlite database with a single connection, used for
// local runs and tests
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// AutoMigrate creates or updates every table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}
	return nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying DB connection")
	}
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return nil
}
