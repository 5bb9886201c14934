// Package database provides SQLite persistence for domofon-core.
//
// The database holds the small amount of durable state the daemon needs:
// the known-face reference vectors and the last good relay catalog
// snapshot (used as a fallback when both remote relay fetches fail).
//
// # Design
//
//   - Single SQLite file, WAL mode, one writer connection
//   - Schema migrations embedded into the binary (see the migrations package)
//   - Each migration runs in its own transaction
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
