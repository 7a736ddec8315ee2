package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ItineraryRecord is one persisted schedule record: the train key plus the
// record's raw JSON, exactly as uploaded.
type ItineraryRecord struct {
	Train  string
	Record string
}

// ColorTag is a presentation-only tag attached to a train.
type ColorTag struct {
	Train     string `json:"tren"`
	Color     string `json:"color"`
	Reference string `json:"reference"`
}

// GetMetadata retrieves a value from the feed_metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM feed_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadata stores a key-value pair in the feed_metadata table.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO feed_metadata (key, value) VALUES (?, ?)`,
		key, value)
	return err
}

// ReplaceItineraries swaps the persisted schedule set wholesale, in one
// transaction so a failure leaves the previous set intact.
func (db *DB) ReplaceItineraries(ctx context.Context, records []ItineraryRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM itineraries`); err != nil {
		return fmt.Errorf("clear itineraries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO itineraries (train, record) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Train, r.Record); err != nil {
			return fmt.Errorf("insert train %s: %w", r.Train, err)
		}
	}
	return tx.Commit()
}

// AllItineraryRecords returns the persisted schedule set.
func (db *DB) AllItineraryRecords(ctx context.Context) ([]ItineraryRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT train, record FROM itineraries ORDER BY train`)
	if err != nil {
		return nil, fmt.Errorf("query itineraries: %w", err)
	}
	defer rows.Close()

	var out []ItineraryRecord
	for rows.Next() {
		var r ItineraryRecord
		if err := rows.Scan(&r.Train, &r.Record); err != nil {
			return nil, fmt.Errorf("scan itinerary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearItineraries removes the persisted schedule set.
func (db *DB) ClearItineraries(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM itineraries`)
	return err
}

// UpsertColorTags inserts or updates presentation color tags.
func (db *DB) UpsertColorTags(ctx context.Context, tags []ColorTag) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO color_tags (train, color, reference) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, t.Train, t.Color, t.Reference); err != nil {
			return fmt.Errorf("upsert tag %s: %w", t.Train, err)
		}
	}
	return tx.Commit()
}

// AllColorTags returns the color tags keyed by train.
func (db *DB) AllColorTags(ctx context.Context) (map[string]ColorTag, error) {
	rows, err := db.QueryContext(ctx, `SELECT train, color, reference FROM color_tags`)
	if err != nil {
		return nil, fmt.Errorf("query color tags: %w", err)
	}
	defer rows.Close()

	out := map[string]ColorTag{}
	for rows.Next() {
		var t ColorTag
		if err := rows.Scan(&t.Train, &t.Color, &t.Reference); err != nil {
			return nil, fmt.Errorf("scan color tag: %w", err)
		}
		out[t.Train] = t
	}
	return out, rows.Err()
}
