// Package database connects the download log to its backend.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for shared deployments
//   - SQLite: modernc.org/sqlite, for single-node deployments
//   - none: recording turned off
//
// # Usage
//
//	cfg := database.Config{
//	    Type:  "sqlite",
//	    DSN:   "satchel.db",
//	    Table: "satchel_downloads",
//	}
//
//	downloadLog, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// Connect opens the connection, runs migrations and validates the schema
// before handing back a satchel.DownloadLog. History pages are ordered
// newest first and paginated with opaque cursors.
package database
