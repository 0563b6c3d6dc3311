// Package postgres stores the download log in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/database/internal"
)

type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables satchel.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: tables.Downloads}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Record inserts rec. A missing ID or CreatedAt is filled in; CreatedAt is
// truncated to the microsecond precision of timestamptz.
func (r *Repo) Record(ctx context.Context, rec satchel.DownloadRecord) (satchel.DownloadRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Microsecond)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, dir, files, kind, outcome, input_bytes, payload_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tableName)

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Dir, rec.Files, rec.Kind, string(rec.Outcome),
		rec.InputBytes, rec.PayloadName, rec.CreatedAt,
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
			WHERE dir LIKE $1 || '%%'
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, r.tableName)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		cursorID, parseErr := uuid.Parse(cursor.ID)
		if parseErr != nil {
			return satchel.ListResult{}, fmt.Errorf("list: %w: cursor id: %w", satchel.ErrInvalidInput, parseErr)
		}

		query = fmt.Sprintf(`
			SELECT id, dir, files, kind, outcome, input_bytes, payload_name, created_at
			FROM %s
			WHERE dir LIKE $1 || '%%' AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, r.tableName)
		args = []any{escapedPrefix, cursor.CreatedAt, cursorID, q.Limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return satchel.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	items := make([]satchel.DownloadRecord, 0, q.Limit)
	for rows.Next() {
		var rec satchel.DownloadRecord
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.Dir, &rec.Files, &rec.Kind, &outcome, &rec.InputBytes, &rec.PayloadName, &rec.CreatedAt); err != nil {
			return satchel.ListResult{}, fmt.Errorf("list: scan: %w", err)
		}
		rec.Outcome = satchel.Outcome(outcome)
		rec.CreatedAt = rec.CreatedAt.UTC()
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
