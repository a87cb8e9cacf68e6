// Package database provides the SQLite store backing the timestamp
// history (ts_history) and channel audit trail (channel_audit).
//
// The connection is opened in WAL mode so API reads run alongside the
// recorder's drain-worker inserts, with a busy timeout guarding the
// remaining lock windows. Schema changes ship as embedded up/down
// migration pairs applied by Migrate, tracked in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
