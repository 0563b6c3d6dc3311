// Package sqlite stores the download log in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/internal"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeFormat is RFC 3339 with a fixed nine-digit fraction, so text order
// matches time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Repo struct {
	db        *sql.DB
	tableName string
}

func NewRepo(db *sql.DB, tables satchel.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{db: db, tableName: tables.Downloads}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record inserts rec. A missing ID or CreatedAt is filled in.
func (r *Repo) Record(ctx context.Context, rec satchel.DownloadRecord) (satchel.DownloadRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, dir, files, kind, outcome, input_bytes, payload_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.Dir, rec.Files, rec.Kind, string(rec.Outcome),
		rec.InputBytes, rec.PayloadName, rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return satchel.DownloadRecord{}, fmt.Errorf("record: %w", err)
	}

	return rec, nil
}

// List returns records newest first. DirPrefix filters on the literal
// start of the recorded base directory.
func (r *Repo) List(ctx context.Context, q satchel.ListQuery) (satchel.ListResult, error) {
	if q.Limit <= 0 {
		return satchel.ListResult{}, fmt.Errorf("list: %w: limit must be positive", satchel.ErrInvalidInput)
	}

	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return satchel.ListResult{}, fmt.Errorf("list: %w: %w", satchel.ErrInvalidInput, err)
	}

	escapedPrefix := internal.EscapeLikePattern(q.DirPrefix)

	var query string
	var args []any

	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT id, dir, files, kind, outcome, input_bytes, payload_name, created_at
			FROM %s
			WHERE dir LIKE ? || '%%' ESCAPE '\'
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, r.tableName)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT id, dir, files, kind, outcome, input_bytes, payload_name, created_at
			FROM %s
			WHERE dir LIKE ? || '%%' ESCAPE '\' AND (created_at, id) < (?, ?)
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, r.tableName)
		args = []any{escapedPrefix, cursor.CreatedAt.UTC().Format(timeFormat), cursor.ID, q.Limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return satchel.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]satchel.DownloadRecord, 0, q.Limit)
	for rows.Next() {
		var rec satchel.DownloadRecord
		var idStr, outcome, createdAt string

		if scanErr := rows.Scan(&idStr, &rec.Dir, &rec.Files, &rec.Kind, &outcome, &rec.InputBytes, &rec.PayloadName, &createdAt); scanErr != nil {
			return satchel.ListResult{}, fmt.Errorf("list: scan: %w", scanErr)
		}

		var parseErr error
		rec.ID, parseErr = uuid.Parse(idStr)
		if parseErr != nil {
			return satchel.ListResult{}, fmt.Errorf("list: parse uuid: %w", parseErr)
		}

		rec.CreatedAt, parseErr = time.Parse(timeFormat, createdAt)
		if parseErr != nil {
			return satchel.ListResult{}, fmt.Errorf("list: parse created_at: %w", parseErr)
		}

		rec.Outcome = satchel.Outcome(outcome)
		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return satchel.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > q.Limit {
		last := items[q.Limit-1]
		nextCursor = internal.EncodeCursor(last.CreatedAt, last.ID.String())
		items = items[:q.Limit]
	}

	return satchel.ListResult{Items: items, NextCursor: nextCursor}, nil
}
