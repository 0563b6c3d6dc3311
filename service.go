package satchel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sagarc03/satchel/metrics"
)

// Tree is the read side of a hierarchical storage backend.
// Paths are '/' separated and relative to the tree root; "" is the root.
//
// All methods accept a context for cancellation. Implementations should
// return ErrNotFound for missing entries and ErrForbidden for entries that
// exist but cannot be read.
type Tree interface {
	// Stat returns the entry at path.
	Stat(ctx context.Context, path string) (Entry, error)

	// List returns the immediate children of the directory at dir in the
	// backend's natural order. Implementations must not re-sort.
	List(ctx context.Context, dir string) ([]Entry, error)

	// Readable reports whether the file at path exists and can be opened.
	Readable(ctx context.Context, path string) bool

	// Open returns a reader for the file content at path.
	// The caller is responsible for closing it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// MimeType returns the detected content type of the file at path,
	// "application/octet-stream" when unknown.
	MimeType(ctx context.Context, path string) string

	// Send writes the content of the file at path to w and returns the
	// number of bytes written.
	Send(ctx context.Context, path string, w io.Writer) (int64, error)
}

// DownloadLog persists the outcome of download requests.
// Implementations must handle concurrent access safely.
type DownloadLog interface {
	// Record stores rec, assigning ID and CreatedAt when they are zero.
	Record(ctx context.Context, rec DownloadRecord) (DownloadRecord, error)

	// List returns records, newest first, optionally filtered by a
	// directory prefix, with cursor pagination.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

type Service struct {
	tree          Tree
	log           DownloadLog
	guard         *Guard
	builder       *Builder
	tempDir       string
	recordTimeout time.Duration
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	Policy        ArchivePolicy
	Method        ArchiveMethod // default: deflate
	TempDir       string        // default: os.TempDir()
	RecordTimeout time.Duration // Timeout for writing the download log (default: 5s)
}

// NewService creates a Service reading from tree. log may be nil, in which
// case downloads are not recorded.
func NewService(tree Tree, log DownloadLog, cfg ServiceConfig) (*Service, error) {
	if tree == nil {
		return nil, errors.New("new service: tree cannot be nil")
	}

	method := cfg.Method
	if method == "" {
		method = MethodDeflate
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("new service: invalid archive method: %s", method)
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	info, err := os.Stat(tempDir)
	if err != nil {
		return nil, fmt.Errorf("new service: temp dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("new service: temp dir %s is not a directory", tempDir)
	}

	recordTimeout := cfg.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = 5 * time.Second
	}

	return &Service{
		tree:          tree,
		log:           log,
		guard:         NewGuard(tree, cfg.Policy),
		builder:       NewBuilder(tree, method),
		tempDir:       tempDir,
		recordTimeout: recordTimeout,
	}, nil
}

// NewTracker returns a fresh request-scoped Tracker rooted at the
// service's temp dir.
func (s *Service) NewTracker() *Tracker {
	return NewTracker(s.tempDir)
}

// Prepare resolves req into a Payload ready to be delivered.
//
// A single regular file is described as-is: ErrNotFound when it does not
// exist, ErrForbidden when it exists but is not readable. A directory or a
// list is first checked by the Guard (ErrArchiveDisabled, ErrQuotaExceeded)
// and then built into an archive owned by tracker.
//
// Prepare never removes anything itself; the caller sweeps tracker on
// every exit path.
func (s *Service) Prepare(ctx context.Context, req Request, tracker *Tracker) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("prepare download: %w", err)
	}

	sel, err := ParseSelection(ctx, s.tree, req)
	if err != nil {
		return nil, fmt.Errorf("prepare download: %w", err)
	}

	if !sel.Archived() {
		return s.prepareFile(ctx, sel)
	}

	total, err := s.guard.Check(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("prepare download: %w", err)
	}

	start := time.Now()
	local, entries, err := s.builder.Build(ctx, sel, tracker)
	metrics.ObserveArchiveBuild(time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("prepare download: %w", err)
	}

	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("prepare download: %w: %w", ErrArchiveOpenFailed, err)
	}

	return &Payload{
		Kind:        PayloadArchive,
		Name:        info.Name(),
		LocalPath:   local,
		ContentType: "application/zip",
		Size:        info.Size(),
		InputBytes:  total,
		Entries:     entries,
		Selection:   sel,
	}, nil
}

func (s *Service) prepareFile(ctx context.Context, sel Selection) (*Payload, error) {
	p := sel.Resolve()[0]

	entry, err := s.tree.Stat(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("prepare download %s: %w", p, err)
	}

	if !s.tree.Readable(ctx, p) {
		return nil, fmt.Errorf("prepare download %s: %w", p, ErrForbidden)
	}

	return &Payload{
		Kind:        PayloadFile,
		Name:        entry.Name,
		Path:        p,
		ContentType: s.tree.MimeType(ctx, p),
		Size:        entry.Size,
		Selection:   sel,
	}, nil
}

// Send streams a PayloadFile through the storage tree's own send primitive.
func (s *Service) Send(ctx context.Context, p *Payload, w io.Writer) (int64, error) {
	if p == nil || p.Kind != PayloadFile {
		return 0, fmt.Errorf("send: %w: not a file payload", ErrInvalidInput)
	}

	n, err := s.tree.Send(ctx, p.Path, w)
	if err != nil {
		return n, fmt.Errorf("send %s: %w", p.Path, err)
	}
	return n, nil
}

// Record writes the outcome of a request to the download log. It never
// fails the request; errors are logged. The write uses a context detached
// from ctx's cancellation so that client disconnects are still recorded.
func (s *Service) Record(ctx context.Context, req Request, p *Payload, reqErr error) {
	if s.log == nil {
		return
	}

	rec := DownloadRecord{
		Dir:     req.Dir,
		Files:   req.Files,
		Outcome: OutcomeFromError(reqErr),
	}

	if p != nil {
		rec.Kind = p.Selection.Kind.String()
		rec.InputBytes = p.InputBytes
		rec.PayloadName = p.Name
	}

	var quotaErr *QuotaError
	if errors.As(reqErr, &quotaErr) {
		rec.InputBytes = quotaErr.Total
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()

	if _, err := s.log.Record(recordCtx, rec); err != nil {
		slog.Warn("failed to record download", "dir", req.Dir, "files", req.Files, "err", err)
	}
}

// History lists the download log.
func (s *Service) History(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("history: %w", err)
	}

	if s.log == nil {
		return ListResult{Items: []DownloadRecord{}}, nil
	}

	result, err := s.log.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("history: %w", err)
	}

	return result, nil
}
