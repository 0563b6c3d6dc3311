package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/internal"
)

var downloadsColumns = internal.Columns{
	"id":           {Type: "uuid"},
	"dir":          {Type: "text"},
	"files":        {Type: "text"},
	"kind":         {Type: "text"},
	"outcome":      {Type: "text"},
	"input_bytes":  {Type: "bigint"},
	"payload_name": {Type: "text"},
	"created_at":   {Type: "timestamp with time zone"},
}

// ValidateSchema checks that the downloads table exists in the public
// schema with the expected columns.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables satchel.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	got, err := tableColumns(ctx, pool, tables.Downloads)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", tables.Downloads, err)
	}

	if err := internal.CompareColumns(tables.Downloads, downloadsColumns, got); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	return nil
}

func tableColumns(ctx context.Context, pool *pgxpool.Pool, table string) (internal.Columns, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	cols := internal.Columns{}
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = internal.Column{Type: strings.ToLower(typ), Nullable: nullable == "YES"}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	// information_schema hides tables the role cannot see, so an empty
	// result is the same as a missing table
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	return cols, nil
}
