// Package journal records device lifecycle events (connect request,
// address attach, each setup stage, armed, shutdown) in the local SQLite
// database, so a device that misbehaved in the field can be inspected
// afterwards.
//
// Usage:
//
//	db, _ := database.Open(ctx, database.Config{Path: path})
//	if err := db.Migrate(ctx, journal.Migrations()); err != nil {
//	    return err
//	}
//	j := journal.NewSQLiteJournal(db.DB, cfg.Device.ID)
//	_ = j.Record(ctx, journal.KindConnected, map[string]any{"interface": "wlan0"}, nil)
package journal
