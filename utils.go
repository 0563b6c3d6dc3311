package satchel

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CleanPath validates a storage path taken from a request and returns it in
// canonical form: relative, '/' separated, with no trailing '/'.
// A single leading and a single trailing '/' are tolerated and stripped.
// It rejects:
//   - empty paths and "." after stripping
//   - empty, "." and ".." segments (so "a//b" and "a/../b" fail)
//   - backslashes
//   - invalid UTF-8
//   - NUL, control characters (< 0x20) and DEL (0x7f)
func CleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")

	if p == "" || p == "." {
		return "", fmt.Errorf("clean path: %w: path cannot be empty", ErrInvalidInput)
	}

	if !utf8.ValidString(p) {
		return "", fmt.Errorf("clean path: %w: invalid utf-8", ErrInvalidInput)
	}

	if strings.ContainsRune(p, '\\') {
		return "", fmt.Errorf("clean path %q: %w: backslash not allowed", p, ErrInvalidInput)
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("clean path %q: %w: control character", p, ErrInvalidInput)
		}
	}

	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".", "..":
			return "", fmt.Errorf("clean path %q: %w: bad segment %q", p, ErrInvalidInput, seg)
		}
	}

	return p, nil
}

// CleanDir is CleanPath for base directories, where "", "/" and "." all
// mean the storage root and come back as "".
func CleanDir(dir string) (string, error) {
	trimmed := strings.Trim(dir, "/")
	if trimmed == "" || trimmed == "." {
		return "", nil
	}
	return CleanPath(trimmed)
}

// JoinPath joins a cleaned base directory and a cleaned relative path.
func JoinPath(base, rel string) string {
	switch {
	case base == "":
		return rel
	case rel == "":
		return base
	default:
		return base + "/" + rel
	}
}
