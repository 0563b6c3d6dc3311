// Package filesystem provides a file system storage tree for satchel.
// It is built on afero so the same code serves a real directory and an
// in-memory tree, and detects content types from the file extension,
// falling back to sniffing the file header.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sagarc03/satchel"
	"github.com/spf13/afero"
)

const defaultContentType = "application/octet-stream"

// Tree provides read access to a directory tree.
type Tree struct {
	fs   afero.Fs
	name func(p string) string
	root *os.Root
}

// NewTree creates a Tree over fsys. Paths passed to the Tree are
// interpreted relative to the root of fsys.
func NewTree(fsys afero.Fs) *Tree {
	return &Tree{fs: fsys, name: rootedName}
}

// NewOSTree creates a Tree confined to dir on the local disk. Every access
// goes through an os.Root, so neither ".." nor a symlink can reach a file
// outside dir.
func NewOSTree(dir string) (*Tree, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("new os tree: %w", err)
	}

	info, err := root.Stat(".")
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("new os tree: %w", err)
	}
	if !info.IsDir() {
		_ = root.Close()
		return nil, fmt.Errorf("new os tree: %s is not a directory", dir)
	}

	return &Tree{fs: afero.FromIOFS{FS: root.FS()}, name: ioFSName, root: root}, nil
}

// Close releases the root opened by NewOSTree.
func (t *Tree) Close() error {
	if t.root == nil {
		return nil
	}
	return t.root.Close()
}

// Stat returns the entry at p, following symlinks that stay inside the
// tree. Returns satchel.ErrNotFound if it does not exist and
// satchel.ErrForbidden if it cannot be inspected.
func (t *Tree) Stat(ctx context.Context, p string) (satchel.Entry, error) {
	if err := ctx.Err(); err != nil {
		return satchel.Entry{}, err
	}

	info, err := t.fs.Stat(t.name(p))
	if err != nil {
		return satchel.Entry{}, mapErr(err)
	}

	return toEntry(p, info), nil
}

// List returns the children of dir sorted by name.
//
// A symlink to a regular file is listed with the size of its target.
// Symlinks to directories, dangling links and links leaving the tree are
// left out, so a walk over List never loops and never counts link bytes.
func (t *Tree) List(ctx context.Context, dir string) ([]satchel.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := t.fs.Open(t.name(dir))
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close directory", "path", dir, "err", closeErr)
		}
	}()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, mapErr(err))
	}

	entries := make([]satchel.Entry, 0, len(infos))
	for _, info := range infos {
		p := satchel.JoinPath(dir, info.Name())

		if info.Mode()&fs.ModeSymlink != 0 {
			target, statErr := t.fs.Stat(t.name(p))
			if statErr != nil {
				slog.Debug("skipping unresolvable symlink", "path", p, "err", statErr)
				continue
			}
			if target.IsDir() {
				slog.Debug("skipping symlinked directory", "path", p)
				continue
			}
			info = target
		}

		if !info.IsDir() && !info.Mode().IsRegular() {
			slog.Debug("skipping special file", "path", p, "mode", info.Mode().String())
			continue
		}

		entries = append(entries, toEntry(p, info))
	}

	slices.SortFunc(entries, func(a, b satchel.Entry) int { return strings.Compare(a.Name, b.Name) })

	return entries, nil
}

// Readable reports whether the regular file at p can be opened for reading.
func (t *Tree) Readable(ctx context.Context, p string) bool {
	if ctx.Err() != nil {
		return false
	}

	f, err := t.fs.Open(t.name(p))
	if err != nil {
		return false
	}
	_ = f.Close()

	return true
}

// Open opens the file at p for reading.
func (t *Tree) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := t.fs.Stat(t.name(p))
	if err != nil {
		return nil, mapErr(err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open %s: %w: is a directory", p, satchel.ErrInvalidInput)
	}

	f, err := t.fs.Open(t.name(p))
	if err != nil {
		return nil, mapErr(err)
	}

	return f, nil
}

// MimeType returns the content type registered for the extension of p,
// or the type sniffed from the first bytes of the file.
func (t *Tree) MimeType(ctx context.Context, p string) string {
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		return ct
	}

	rc, err := t.Open(ctx, p)
	if err != nil {
		return defaultContentType
	}
	defer func() { _ = rc.Close() }()

	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return defaultContentType
	}

	return mt.String()
}

// Send copies the file at p to w.
func (t *Tree) Send(ctx context.Context, p string, w io.Writer) (int64, error) {
	rc, err := t.Open(ctx, p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	n, err := io.Copy(w, &ctxReader{ctx: ctx, r: rc})
	if err != nil {
		return n, fmt.Errorf("send %s: %w", p, err)
	}

	return n, nil
}

func toEntry(p string, info fs.FileInfo) satchel.Entry {
	e := satchel.Entry{
		Path:    p,
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	if p != "" {
		e.Name = path.Base(p)
	}
	return e
}

// rootedName maps a tree path to an afero name such as "/docs/a.txt".
func rootedName(p string) string {
	return "/" + p
}

// ioFSName maps a tree path to an io/fs name, where the root is ".".
func ioFSName(p string) string {
	if p == "" {
		return "."
	}
	return p
}

// mapErr translates filesystem errors into satchel sentinels. Any other
// path error, including os.Root refusing a path that escapes the tree, is
// reported as forbidden.
func mapErr(err error) error {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", satchel.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", satchel.ErrForbidden, err)
	case errors.As(err, &pathErr):
		return fmt.Errorf("%w: %w", satchel.ErrForbidden, err)
	default:
		return err
	}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
