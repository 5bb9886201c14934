package face

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// KnownFace is one registered reference face.
type KnownFace struct {
	Name     string
	Encoding []float64
}

// Repository defines persistence for the known-face registry.
type Repository interface {
	// List retrieves all known faces in registration order.
	List(ctx context.Context) ([]KnownFace, error)

	// Save inserts or replaces a face by name.
	Save(ctx context.Context, face KnownFace) error

	// Delete removes a face by name.
	// Returns ErrFaceNotFound if the name is not registered.
	Delete(ctx context.Context, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed face repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all known faces in registration order.
func (r *SQLiteRepository) List(ctx context.Context) ([]KnownFace, error) {
	query := `SELECT name, encoding FROM known_faces ORDER BY created_at, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying known faces: %w", err)
	}
	defer rows.Close()

	var faces []KnownFace
	for rows.Next() {
		var (
			face KnownFace
			raw  string
		)
		if err := rows.Scan(&face.Name, &raw); err != nil {
			return nil, fmt.Errorf("scanning known face: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &face.Encoding); err != nil {
			return nil, fmt.Errorf("decoding encoding for %s: %w", face.Name, err)
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating known faces: %w", err)
	}
	return faces, nil
}

// Save inserts or replaces a face by name.
func (r *SQLiteRepository) Save(ctx context.Context, face KnownFace) error {
	encoded, err := json.Marshal(face.Encoding)
	if err != nil {
		return fmt.Errorf("encoding face vector: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO known_faces (name, encoding, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET encoding = excluded.encoding, updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, face.Name, string(encoded), now, now); err != nil {
		return fmt.Errorf("saving known face %s: %w", face.Name, err)
	}
	return nil
}

// Delete removes a face by name.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM known_faces WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting known face %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrFaceNotFound
	}
	return nil
}
