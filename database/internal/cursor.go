// Package internal holds helpers shared by the download log backends.
package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor marks the last record of a history page. Pages are ordered by
// created_at then id, both descending.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// EncodeCursor returns an opaque, URL-safe cursor for the record.
func EncodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor from EncodeCursor. An empty string gives the
// zero Cursor, meaning the first page.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}

	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, errors.New("decode cursor: invalid format")
	}

	if id == "" {
		return Cursor{}, errors.New("decode cursor: empty id")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid timestamp: %w", err)
	}

	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

// EscapeLikePattern escapes the LIKE wildcards % and _ and the escape
// character itself, for use with ESCAPE '\'.
func EscapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
