package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/satchel"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

func getTableMigrations(tables satchel.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Downloads,
			Up:        createDownloadsTable(tables.Downloads),
			Down:      dropTable(tables.Downloads),
		},
	}
}

// Migrate creates the download log tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, tables satchel.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

// DropTables removes the download log tables in reverse creation order.
func DropTables(ctx context.Context, db *sql.DB, tables satchel.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createDownloadsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexHistory := quoteIdentifier(fmt.Sprintf("idx_%s_history", tableName))
		indexDir := quoteIdentifier(fmt.Sprintf("idx_%s_dir", tableName))

		// created_at is fixed-width text so that it sorts chronologically
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				dir TEXT NOT NULL,
				files TEXT NOT NULL,
				kind TEXT NOT NULL,
				outcome TEXT NOT NULL,
				input_bytes INTEGER NOT NULL,
				payload_name TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (created_at, id)
		`, indexHistory, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index history: %w", err)
		}

		indexSQL = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (dir)
		`, indexDir, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
