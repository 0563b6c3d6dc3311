package satchel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/zip"
)

// Builder assembles ZIP archives from storage tree selections.
type Builder struct {
	tree   Tree
	method ArchiveMethod
}

// NewBuilder returns a Builder reading from tree. An invalid method falls
// back to MethodDeflate.
func NewBuilder(tree Tree, method ArchiveMethod) *Builder {
	if !method.IsValid() {
		method = MethodDeflate
	}
	return &Builder{tree: tree, method: method}
}

// Plan lists the archive members for sel in the order they will be written.
// Only metadata is read.
//
// List items that are regular files go to the archive root under their base
// name. Directories, whether selected directly or as a list item, are added
// under their own name with their full recursive contents below it, in the
// tree's listing order. List items that do not exist are skipped.
func (b *Builder) Plan(ctx context.Context, sel Selection) ([]ArchiveEntry, error) {
	switch sel.Kind {
	case SelectionDirectory:
		dir := sel.Resolve()[0]
		entry, err := b.tree.Stat(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("plan archive: %w: %w", ErrStorageReadFailed, err)
		}
		return b.planDir(ctx, entry, "")

	case SelectionList:
		var entries []ArchiveEntry
		for _, p := range sel.Resolve() {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("plan archive: %w", err)
			}

			entry, err := b.tree.Stat(ctx, p)
			if errors.Is(err, ErrNotFound) {
				slog.Debug("skipping missing list item", "path", p)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("plan archive: %w: %w", ErrStorageReadFailed, err)
			}

			if entry.IsDir {
				sub, dirErr := b.planDir(ctx, entry, "")
				if dirErr != nil {
					return nil, dirErr
				}
				entries = append(entries, sub...)
				continue
			}

			entries = append(entries, ArchiveEntry{
				Name:    path.Base(p),
				Source:  p,
				ModTime: entry.ModTime,
			})
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("plan archive: %w: %s selection is not archived", ErrInvalidInput, sel.Kind)
	}
}

func (b *Builder) planDir(ctx context.Context, dir Entry, prefix string) ([]ArchiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("plan archive: %w", err)
	}

	inner := prefix + path.Base(dir.Path) + "/"
	entries := []ArchiveEntry{{Name: inner, Dir: true, ModTime: dir.ModTime}}

	children, err := b.tree.List(ctx, dir.Path)
	if err != nil {
		return nil, fmt.Errorf("plan archive %s: %w: %w", dir.Path, ErrStorageReadFailed, err)
	}

	for _, child := range children {
		if child.IsDir {
			sub, subErr := b.planDir(ctx, child, inner)
			if subErr != nil {
				return nil, subErr
			}
			entries = append(entries, sub...)
			continue
		}

		entries = append(entries, ArchiveEntry{
			Name:    inner + child.Name,
			Source:  child.Path,
			ModTime: child.ModTime,
		})
	}

	return entries, nil
}

// Build plans sel, creates the archive container through tracker and writes
// every member into it. Each regular file is first materialized into a
// tracker-owned temporary file. The archive is closed before Build returns.
//
// Any member that cannot be read aborts the whole archive. The caller owns
// tracker and must sweep it; that also removes a partly written archive.
func (b *Builder) Build(ctx context.Context, sel Selection, tracker *Tracker) (string, []ArchiveEntry, error) {
	entries, err := b.Plan(ctx, sel)
	if err != nil {
		return "", nil, fmt.Errorf("build archive: %w", err)
	}

	f, err := tracker.CreateArchive()
	if err != nil {
		return "", nil, fmt.Errorf("build archive: %w: %w", ErrArchiveOpenFailed, err)
	}

	zw := zip.NewWriter(f)

	if writeErr := b.write(ctx, zw, entries, tracker); writeErr != nil {
		_ = zw.Close()
		_ = f.Close()
		return "", nil, fmt.Errorf("build archive: %w", writeErr)
	}

	if closeErr := zw.Close(); closeErr != nil {
		_ = f.Close()
		return "", nil, fmt.Errorf("build archive: close zip: %w", closeErr)
	}

	if closeErr := f.Close(); closeErr != nil {
		return "", nil, fmt.Errorf("build archive: close file: %w", closeErr)
	}

	return f.Name(), entries, nil
}

func (b *Builder) write(ctx context.Context, zw *zip.Writer, entries []ArchiveEntry, tracker *Tracker) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.Dir {
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store, Modified: e.ModTime}); err != nil {
				return fmt.Errorf("add dir %s: %w", e.Name, err)
			}
			continue
		}

		local, err := Materialize(ctx, b.tree, e.Source, tracker)
		if err != nil {
			return err
		}

		if err := addFile(zw, local, e, b.method.zipMethod()); err != nil {
			return err
		}
	}

	return nil
}

func addFile(zw *zip.Writer, local string, e ArchiveEntry, method uint16) error {
	src, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("add file %s: %w", e.Name, err)
	}
	defer func() { _ = src.Close() }()

	modified := e.ModTime
	if modified.IsZero() {
		modified = time.Now()
	}

	w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method, Modified: modified})
	if err != nil {
		return fmt.Errorf("add file %s: %w", e.Name, err)
	}

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("add file %s: %w", e.Name, err)
	}

	return nil
}

// Materialize copies the storage file at p into a new tracker-owned local
// temporary file and returns its path.
func Materialize(ctx context.Context, tree Tree, p string, tracker *Tracker) (string, error) {
	rc, err := tree.Open(ctx, p)
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w: %w", p, ErrStorageReadFailed, err)
	}
	defer func() { _ = rc.Close() }()

	tmp, err := tracker.CreateTemp(path.Ext(p))
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w", p, err)
	}

	_, copyErr := io.Copy(tmp, &ctxReader{ctx: ctx, r: rc})
	closeErr := tmp.Close()

	if copyErr != nil {
		return "", fmt.Errorf("materialize %s: %w: %w", p, ErrStorageReadFailed, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("materialize %s: %w", p, closeErr)
	}

	return tmp.Name(), nil
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
