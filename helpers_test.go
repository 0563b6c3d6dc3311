package satchel_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk on fire")

// newMemTree builds an in-memory tree. Keys ending in '/' create empty
// directories.
func newMemTree(t *testing.T, files map[string]string) *filesystem.Tree {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if name[len(name)-1] == '/' {
			require.NoError(t, fsys.MkdirAll("/"+name, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir("/"+name), 0o755))
		require.NoError(t, afero.WriteFile(fsys, "/"+name, []byte(content), 0o644))
	}

	return filesystem.NewTree(fsys)
}

// sizedTree reports fixed sizes for files without holding their content.
type sizedTree struct {
	satchel.Tree
	sizes map[string]int64
}

func (s *sizedTree) Stat(ctx context.Context, p string) (satchel.Entry, error) {
	e, err := s.Tree.Stat(ctx, p)
	if err == nil {
		if size, ok := s.sizes[p]; ok {
			e.Size = size
		}
	}
	return e, err
}

func (s *sizedTree) List(ctx context.Context, dir string) ([]satchel.Entry, error) {
	entries, err := s.Tree.List(ctx, dir)
	for i := range entries {
		if size, ok := s.sizes[entries[i].Path]; ok {
			entries[i].Size = size
		}
	}
	return entries, err
}

// faultyTree fails Open for one path and List for another.
type faultyTree struct {
	satchel.Tree
	failOpen string
	failList string
}

func (f *faultyTree) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if p == f.failOpen {
		return nil, errDisk
	}
	return f.Tree.Open(ctx, p)
}

func (f *faultyTree) List(ctx context.Context, dir string) ([]satchel.Entry, error) {
	if dir == f.failList {
		return nil, errDisk
	}
	return f.Tree.List(ctx, dir)
}

// forbiddenStatTree refuses to Stat one path.
type forbiddenStatTree struct {
	satchel.Tree
	path string
}

func (f *forbiddenStatTree) Stat(ctx context.Context, p string) (satchel.Entry, error) {
	if p == f.path {
		return satchel.Entry{}, fmt.Errorf("stat %s: %w", p, satchel.ErrForbidden)
	}
	return f.Tree.Stat(ctx, p)
}

// unreadableTree reports every file as existing but not readable.
type unreadableTree struct {
	satchel.Tree
}

func (u *unreadableTree) Readable(context.Context, string) bool {
	return false
}

type SpyDownloadLog struct {
	mock.Mock
}

func (s *SpyDownloadLog) Record(ctx context.Context, rec satchel.DownloadRecord) (satchel.DownloadRecord, error) {
	args := s.Called(ctx, rec)
	return args.Get(0).(satchel.DownloadRecord), args.Error(1)
}

func (s *SpyDownloadLog) List(ctx context.Context, q satchel.ListQuery) (satchel.ListResult, error) {
	args := s.Called(ctx, q)
	return args.Get(0).(satchel.ListResult), args.Error(1)
}

type zipContent struct {
	names []string
	files map[string]string
}

func readZip(t *testing.T, name string) zipContent {
	t.Helper()

	zr, err := zip.OpenReader(name)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	out := zipContent{files: make(map[string]string)}
	for _, f := range zr.File {
		out.names = append(out.names, f.Name)
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out.files[f.Name] = string(data)
	}

	return out
}

// dirEntries returns the names left in dir.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
