package face

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the known_faces
// table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE known_faces (
			name       TEXT PRIMARY KEY,
			encoding   TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepositorySaveAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, KnownFace{Name: "alice", Encoding: []float64{0.1, 0.2}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, KnownFace{Name: "bob", Encoding: []float64{0.3}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	faces, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("faces = %d, want 2", len(faces))
	}
	if faces[0].Name != "alice" || !reflect.DeepEqual(faces[0].Encoding, []float64{0.1, 0.2}) {
		t.Errorf("first face = %+v", faces[0])
	}
}

func TestRepositorySaveReplacesByName(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Save(ctx, KnownFace{Name: "alice", Encoding: []float64{0.1}})
	if err := repo.Save(ctx, KnownFace{Name: "alice", Encoding: []float64{0.9}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	faces, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("faces = %d, want 1 (last write wins)", len(faces))
	}
	if faces[0].Encoding[0] != 0.9 {
		t.Errorf("encoding = %v, want the replacement", faces[0].Encoding)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	repo.Save(ctx, KnownFace{Name: "alice", Encoding: []float64{0.1}})

	if err := repo.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "alice"); !errors.Is(err, ErrFaceNotFound) {
		t.Errorf("error = %v, want ErrFaceNotFound", err)
	}
}
