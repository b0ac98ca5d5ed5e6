/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/familyzen/internal/config"
)

var openers = map[config.DatabaseBackend]func(dsn string) gorm.Dialector{
	config.DatabasePostgres: postgres.Open,
	config.DatabaseMySQL:    mysql.Open,
	config.DatabaseSQLite:   sqlite.Open,
}

// Connect opens the configured backend, sizes its pool and installs the
// statement metrics hooks.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	open, ok := openers[cfg.DBBackend]
	if !ok {
		return nil, fmt.Errorf("unknown database backend: %s", cfg.DBBackend)
	}

	level := logger.Warn
	if cfg.Environment == "development" {
		level = logger.Info
	}

	database, err := gorm.Open(open(cfg.DBDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBBackend, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sizePool(sqlDB, cfg.DBBackend)

	if err := RegisterCallbacks(database); err != nil {
		return nil, fmt.Errorf("register db callbacks: %w", err)
	}
	return database, nil
}

func sizePool(sqlDB *sql.DB, backend config.DatabaseBackend) {
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if backend == config.DatabaseSQLite {
		// One writer at a time, and in-memory databases are per connection.
		sqlDB.SetMaxOpenConns(1)
		return
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
}

// Close releases the underlying connection pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
