package storage

import "fmt"

// migrate creates the schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// The loaded schedule set, one raw JSON record per train. The record
	// keeps its original dynamic-key shape so a reload round-trips exactly
	// what the operator uploaded.
	`CREATE TABLE IF NOT EXISTS itineraries (
		train  TEXT PRIMARY KEY,
		record TEXT NOT NULL
	)`,

	// Presentation-only color tags; never read by the match engine.
	`CREATE TABLE IF NOT EXISTS color_tags (
		train     TEXT PRIMARY KEY,
		color     TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT ''
	)`,

	// Key-value metadata (schedule file name, load time).
	`CREATE TABLE IF NOT EXISTS feed_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
