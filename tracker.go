package satchel

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Tracker records every temporary file created while serving one request
// so that all of them can be removed when the request ends.
//
// A Tracker belongs to a single request and is not safe for concurrent use.
// Create one per request and defer Close.
type Tracker struct {
	dir     string
	files   []string
	archive string
}

// NewTracker returns a Tracker that creates its files in dir.
// An empty dir means os.TempDir().
func NewTracker(dir string) *Tracker {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Tracker{dir: dir}
}

// Dir returns the directory temporary files are created in.
func (t *Tracker) Dir() string {
	return t.dir
}

// CreateTemp creates a new, uniquely named file and registers it before
// returning, so a file that is only partly written is still swept.
func (t *Tracker) CreateTemp(suffix string) (*os.File, error) {
	f, err := t.create("satchel-", suffix)
	if err != nil {
		return nil, err
	}
	t.Register(f.Name())
	return f, nil
}

// CreateArchive creates the archive container file. It is tracked apart
// from other files so it can be removed right after it has been streamed.
func (t *Tracker) CreateArchive() (*os.File, error) {
	f, err := t.create("download-", ".zip")
	if err != nil {
		return nil, err
	}
	t.archive = f.Name()
	return f, nil
}

func (t *Tracker) create(prefix, suffix string) (*os.File, error) {
	name := filepath.Join(t.dir, prefix+uuid.New().String()+suffix)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Register adds path to the registry.
func (t *Tracker) Register(path string) {
	t.files = append(t.files, path)
}

// Archive returns the archive container path, or "" if none was created.
func (t *Tracker) Archive() string {
	return t.archive
}

// Paths returns every registered path, the archive container last.
func (t *Tracker) Paths() []string {
	out := make([]string, 0, len(t.files)+1)
	out = append(out, t.files...)
	if t.archive != "" {
		out = append(out, t.archive)
	}
	return out
}

// RemoveArchive deletes the archive container. A missing file is not an error.
func (t *Tracker) RemoveArchive() error {
	if t.archive == "" {
		return nil
	}
	if err := removeIfExists(t.archive); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// Sweep deletes every registered path that still exists and returns how
// many files it removed. A failure on one path does not stop the others;
// all failures are returned joined. Sweep can be called any number of times.
func (t *Tracker) Sweep() (int, error) {
	var errs []error
	removed := 0

	for _, p := range t.Paths() {
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err := removeIfExists(p); err != nil {
			slog.Warn("failed to remove temp file", "path", p, "err", err)
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

// Close sweeps the registry. It exists so a Tracker can be deferred.
func (t *Tracker) Close() error {
	_, err := t.Sweep()
	return err
}

func removeIfExists(p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
