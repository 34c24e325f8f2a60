// Package database provides database helper functions
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/pkg/config"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// VerifyCatalogConnection runs a round-trip query against a catalog DSN on a
// throwaway connection. Used at container build time for remote catalogs,
// where sql.Open and even Ping can succeed against a bad URL or auth token
// that only fails once a statement runs.
func VerifyCatalogConnection(dsn string, logger *logging.ChanneledLogger) error {
	start := time.Now()
	driverName := DriverForDSN(dsn)
	logger.Database().Debug("Verifying catalog connection", "driverName", driverName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		logger.Database().Error("Failed to open catalog connection", "error", err.Error(), "driverName", driverName)
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		logger.Database().Error("Catalog verification query failed", "error", err.Error(), "driverName", driverName)
		return fmt.Errorf("connection test query failed: %w", err)
	}

	if result != 1 {
		logger.Database().Error("Unexpected catalog query result", "result", result, "expected", 1)
		return fmt.Errorf("unexpected query result: %d", result)
	}

	logger.Database().Info("Catalog connection verified", "driverName", driverName, "duration", time.Since(start))
	return nil
}

// GetSlowQueryThreshold returns the configured slow query threshold
func GetSlowQueryThreshold() time.Duration {
	return config.SlowQueryThreshold
}

// CheckAndLogSlowQuery checks if a query duration exceeds threshold
// and logs it using the slow query channel if it does
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration) {
	threshold := GetSlowQueryThreshold()

	// Bulk operations get extra headroom
	if len(query) > 5 && query[:5] == "BULK_" {
		threshold *= 3
	}

	if duration > threshold {
		logger.LogSlowQuery(query, duration)
	}
}
