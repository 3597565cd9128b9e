// Package database provides SQLite connectivity for the SkyRoute failure journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from any fs.FS
//   - Transaction helpers
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/skyroute.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live at the root of the supplied filesystem and are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
// Migrations are additive-only: new columns must be NULLABLE or have defaults.
package database
