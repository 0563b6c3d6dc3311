package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/internal"
)

var downloadsColumns = internal.Columns{
	"id":           {Type: "text"},
	"dir":          {Type: "text"},
	"files":        {Type: "text"},
	"kind":         {Type: "text"},
	"outcome":      {Type: "text"},
	"input_bytes":  {Type: "integer"},
	"payload_name": {Type: "text"},
	"created_at":   {Type: "text"},
}

// ValidateSchema checks that the downloads table exists with the expected
// columns.
func ValidateSchema(ctx context.Context, db *sql.DB, tables satchel.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	got, err := tableColumns(ctx, db, tables.Downloads)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", tables.Downloads, err)
	}

	if err := internal.CompareColumns(tables.Downloads, downloadsColumns, got); err != nil {
		return fmt.Errorf("validate schema: %w", err)
	}

	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (internal.Columns, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	if err != nil {
		return nil, fmt.Errorf("check table: %w", err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := internal.Columns{}
	for rows.Next() {
		var (
			cid, notNull, pk int
			col, typ         string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[col] = internal.Column{Type: strings.ToLower(typ), Nullable: notNull == 0}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	return cols, nil
}
