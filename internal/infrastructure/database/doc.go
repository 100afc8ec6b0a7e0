// Package database provides the SQLite store behind the command audit
// trail.
//
// It opens the file with WAL mode and a busy timeout, limits the pool to
// one connection (SQLite has a single writer) and applies embedded
// migrations in version order.
//
// The database is history only. Lock state always comes from the remote
// service and is never restored from here.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are embedded by the migrations package.
package database
