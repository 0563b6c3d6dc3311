package satchel_test

import (
	"testing"
	"unicode/utf8"

	"github.com/sagarc03/satchel"
	"github.com/stretchr/testify/assert"
)

func TestCleanPath(t *testing.T) {
	// Create a path with invalid UTF-8 (without embedding raw invalid bytes in source)
	invalidUTF8 := string([]byte{'a', 0xff, 'b'})

	tt := []struct {
		Name string
		Path string
		Want string
		OK   bool
	}{
		// Basics
		{Name: "root path", Path: "/", OK: false},
		{Name: "empty path", Path: "", OK: false},
		{Name: "single dot", Path: ".", OK: false},
		{Name: "leading slash stripped", Path: "/some/path", Want: "some/path", OK: true},
		{Name: "trailing slash stripped", Path: "some/dir/", Want: "some/dir", OK: true},

		// Dot segments
		{Name: "double dots segment", Path: "../", OK: false},
		{Name: "double dots in middle segment", Path: "a/../b", OK: false},
		{Name: "double dots at end", Path: "a/..", OK: false},
		{Name: "single dot segment", Path: "a/./b", OK: false},
		{Name: "double dots inside filename are fine", Path: "a/b..c", Want: "a/b..c", OK: true},

		// Empty segments
		{Name: "double slash", Path: "a//b", OK: false},
		{Name: "leading double slash", Path: "//a", OK: false},

		// Forbidden characters
		{Name: "contains backslash", Path: `some\path/file.ext`, OK: false},
		{Name: "contains NUL", Path: "some\x00path/file.ext", OK: false},
		{Name: "contains DEL", Path: "some\x7fpath/file.ext", OK: false},
		{Name: "contains tab", Path: "some\tpath/file.ext", OK: false},
		{Name: "contains newline", Path: "some\npath/file.ext", OK: false},

		// UTF-8 validity
		{Name: "invalid utf8", Path: invalidUTF8, OK: false},

		// Valid examples
		{Name: "simple valid", Path: "some/path/file.ext", Want: "some/path/file.ext", OK: true},
		{Name: "spaces valid", Path: "My Documents/report 1.pdf", Want: "My Documents/report 1.pdf", OK: true},
		{Name: "hidden file valid", Path: ".hidden/file", Want: ".hidden/file", OK: true},
		{Name: "unicode valid", Path: "привет/世界/file.ext", Want: "привет/世界/file.ext", OK: true},
	}

	// sanity check for our generated invalid UTF-8 case
	if utf8.ValidString(invalidUTF8) {
		t.Fatalf("test setup error: invalidUTF8 is unexpectedly valid")
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := satchel.CleanPath(tc.Path)
			if !tc.OK {
				assert.ErrorIs(t, err, satchel.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.Want, got)
		})
	}
}

func TestCleanDir(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{name: "empty is root", dir: "", want: ""},
		{name: "slash is root", dir: "/", want: ""},
		{name: "dot is root", dir: ".", want: ""},
		{name: "absolute dir", dir: "/docs", want: "docs"},
		{name: "nested with trailing slash", dir: "/docs/2024/", want: "docs/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := satchel.CleanDir(tt.dir)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := satchel.CleanDir("/docs/../etc")
	assert.ErrorIs(t, err, satchel.ErrInvalidInput)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "a.txt", satchel.JoinPath("", "a.txt"))
	assert.Equal(t, "docs", satchel.JoinPath("docs", ""))
	assert.Equal(t, "docs/a.txt", satchel.JoinPath("docs", "a.txt"))
}
