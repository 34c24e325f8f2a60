// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
}

// DriverForDSN selects the driver by DSN scheme: libsql:// and https:// go to
// the remote libsql driver, everything else (file:, :memory:) to sqlite3.
func DriverForDSN(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "https://") {
		return "libsql"
	}
	return "sqlite3"
}

// NewConnection establishes a new database connection for the given DSN.
func NewConnection(dataSourceName string) (*DB, error) {
	db, err := sql.Open(DriverForDSN(dataSourceName), dataSourceName)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	configurePool(db)
	return &DB{db}, nil
}

// NewConnectionWithLogger establishes a new database connection for the given DSN with logging.
func NewConnectionWithLogger(dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	driverName := DriverForDSN(dataSourceName)
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	configurePool(db)

	logger.Database().Info("Database connection established", "driverName", driverName, "duration", time.Since(start))
	duration := time.Since(start)
	if duration > GetSlowQueryThreshold() {
		logger.LogSlowQuery("DATABASE_CONNECTION", duration)
	}

	return &DB{db}, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute)
}
