package db

import (
	"fmt"

	"gorm.io/gorm"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id               BIGSERIAL PRIMARY KEY,
		plate            TEXT NOT NULL,
		entry_time       TIMESTAMPTZ NOT NULL,
		exit_time        TIMESTAMPTZ,
		duration_minutes BIGINT,
		fare             NUMERIC(12,2),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_plate ON parking_sessions(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_parking_sessions_entry_time ON parking_sessions(entry_time);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_sessions_open_plate
		ON parking_sessions(plate) WHERE exit_time IS NULL;`,
	`CREATE TABLE IF NOT EXISTS plate_reads (
		id            VARCHAR(36) PRIMARY KEY,
		event         TEXT NOT NULL,
		samples       JSONB,
		consolidated  TEXT,
		plate         TEXT,
		confidence    DOUBLE PRECISION,
		snapshot_url  TEXT,
		error         TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_reads_created_at ON plate_reads(created_at);`,
}

// MySQL has no partial indexes; the generated open_plate column is NULL for
// closed sessions, and a UNIQUE index ignores NULLs.
var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id               BIGINT AUTO_INCREMENT PRIMARY KEY,
		plate            VARCHAR(32) NOT NULL,
		entry_time       DATETIME(6) NOT NULL,
		exit_time        DATETIME(6) NULL,
		duration_minutes BIGINT NULL,
		fare             DECIMAL(12,2) NULL,
		created_at       DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at       DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		open_plate       VARCHAR(32) AS (CASE WHEN exit_time IS NULL THEN plate END) STORED,
		INDEX idx_parking_sessions_plate (plate),
		INDEX idx_parking_sessions_entry_time (entry_time),
		UNIQUE INDEX ux_parking_sessions_open_plate (open_plate)
	);`,
	`CREATE TABLE IF NOT EXISTS plate_reads (
		id            VARCHAR(36) PRIMARY KEY,
		event         VARCHAR(16) NOT NULL,
		samples       JSON,
		consolidated  VARCHAR(64),
		plate         VARCHAR(32),
		confidence    DOUBLE,
		snapshot_url  TEXT,
		error         TEXT,
		created_at    DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_plate_reads_created_at (created_at)
	);`,
}

func migrationsFor(driver string) ([]string, error) {
	switch driver {
	case DriverPostgres:
		return postgresMigrations, nil
	case DriverMySQL:
		return mysqlMigrations, nil
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}

func runMigrations(db *gorm.DB, driver string) error {
	statements, err := migrationsFor(driver)
	if err != nil {
		return err
	}
	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
