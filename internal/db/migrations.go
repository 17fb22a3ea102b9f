package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'defect_class') THEN
			CREATE TYPE defect_class AS ENUM ('POTHOLE', 'CRACK');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'severity_level') THEN
			CREATE TYPE severity_level AS ENUM ('LOW', 'MEDIUM', 'HIGH');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'event_status') THEN
			CREATE TYPE event_status AS ENUM ('OPEN', 'REPAIRED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'location_source') THEN
			CREATE TYPE location_source AS ENUM ('GPS', 'IP_FALLBACK', 'UNKNOWN');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS detection_events (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		seq BIGSERIAL UNIQUE,
		timestamp TIMESTAMPTZ NOT NULL,
		class defect_class NOT NULL,
		confidence DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		severity severity_level NOT NULL,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		location_source location_source NOT NULL DEFAULT 'UNKNOWN',
		image_ref TEXT,
		status event_status NOT NULL DEFAULT 'OPEN',
		repaired_at TIMESTAMPTZ,
		technician VARCHAR(255),
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_class ON detection_events (class);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_severity ON detection_events (severity);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_status ON detection_events (status);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_timestamp ON detection_events (timestamp);`,
}

func Migrate(database *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}
	return nil
}
