package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/satchel"
)

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
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
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables satchel.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

// DropTables removes the download log tables in reverse creation order.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables satchel.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createDownloadsTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgx.Identifier{tableName}.Sanitize()
		indexHistory := pgx.Identifier{fmt.Sprintf("idx_%s_history", tableName)}.Sanitize()
		indexDir := pgx.Identifier{fmt.Sprintf("idx_%s_dir", tableName)}.Sanitize()

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				dir TEXT NOT NULL,
				files TEXT NOT NULL,
				kind TEXT NOT NULL,
				outcome TEXT NOT NULL,
				input_bytes BIGINT NOT NULL,
				payload_name TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (dir text_pattern_ops);
		`,
			quotedTable,
			indexHistory, quotedTable,
			indexDir, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create downloads table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{tableName}.Sanitize()))
		return err
	}
}
