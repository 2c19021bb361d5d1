// Package database opens the local SQLite file used by wifipub for durable
// records and applies versioned schema migrations to it.
//
// Connections are opened with foreign keys on, an optional WAL journal and
// a busy timeout. The file is restricted to its owner (0600).
//
// Migrations are read from any fs.FS, normally an embed.FS owned by the
// package whose tables they create:
//
//	db, err := database.Open(ctx, database.Config{Path: "/var/lib/wifipub/wifipub.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, schemaFS); err != nil {
//	    return err
//	}
package database
