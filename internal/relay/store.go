package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteSnapshots implements Snapshots using SQLite. The snapshot is
// replaced wholesale per refresh; there is never a partial merge.
type SQLiteSnapshots struct {
	db *sql.DB
}

// NewSQLiteSnapshots creates a SQLite-backed snapshot store.
// The db parameter should be an open SQLite connection with the
// relay_snapshot table migrated.
func NewSQLiteSnapshots(db *sql.DB) *SQLiteSnapshots {
	return &SQLiteSnapshots{db: db}
}

// Replace overwrites the persisted snapshot with the given catalog.
func (s *SQLiteSnapshots) Replace(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relay_snapshot`); err != nil {
		return fmt.Errorf("clearing relay snapshot: %w", err)
	}

	query := `
		INSERT INTO relay_snapshot (
			uid, address, mac, door_id, is_main, has_video,
			image_url, open_link, entrance_uid, relay_id, relay_num, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	fetchedAt := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		var relayID, relayNum sql.NullInt64
		if rec.Opener != nil {
			if rec.Opener.RelayID != nil {
				relayID = sql.NullInt64{Int64: int64(*rec.Opener.RelayID), Valid: true}
			}
			if rec.Opener.RelayNum != nil {
				relayNum = sql.NullInt64{Int64: int64(*rec.Opener.RelayNum), Valid: true}
			}
		}

		if _, err := tx.ExecContext(ctx, query,
			rec.UID, rec.Address, rec.MAC, rec.DoorID, rec.IsMain, rec.HasVideo,
			rec.ImageURL, rec.OpenLink, rec.EntranceUID, relayID, relayNum, fetchedAt,
		); err != nil {
			return fmt.Errorf("inserting relay snapshot row %s: %w", rec.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing relay snapshot: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot in its stored order.
func (s *SQLiteSnapshots) Load(ctx context.Context) ([]Record, error) {
	query := `
		SELECT uid, address, mac, door_id, is_main, has_video,
			image_url, open_link, entrance_uid, relay_id, relay_num
		FROM relay_snapshot
		ORDER BY is_main DESC, LOWER(address)`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying relay snapshot: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec               Record
			relayID, relayNum sql.NullInt64
		)
		if err := rows.Scan(
			&rec.UID, &rec.Address, &rec.MAC, &rec.DoorID, &rec.IsMain, &rec.HasVideo,
			&rec.ImageURL, &rec.OpenLink, &rec.EntranceUID, &relayID, &relayNum,
		); err != nil {
			return nil, fmt.Errorf("scanning relay snapshot row: %w", err)
		}
		if relayID.Valid || relayNum.Valid {
			opener := &Opener{MAC: rec.MAC}
			if relayID.Valid {
				n := int(relayID.Int64)
				opener.RelayID = &n
			}
			if relayNum.Valid {
				n := int(relayNum.Int64)
				opener.RelayNum = &n
			}
			rec.Opener = opener
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relay snapshot: %w", err)
	}
	return records, nil
}
