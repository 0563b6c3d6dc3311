package satchel

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

// DefaultMaxInputSize is the archive input ceiling used when none is configured (800 MiB).
const DefaultMaxInputSize int64 = 800 << 20

// SelectionKind tells how a download request should be served.
type SelectionKind int

const (
	// SelectionSingle is one path served as-is (or answered with 404/403).
	SelectionSingle SelectionKind = iota + 1
	// SelectionDirectory is one path that resolved to a directory.
	SelectionDirectory
	// SelectionList is a ';' separated list of paths.
	SelectionList
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionSingle:
		return "single"
	case SelectionDirectory:
		return "directory"
	case SelectionList:
		return "list"
	default:
		return "unknown"
	}
}

// Selection is the parsed form of a download request. Paths are cleaned,
// relative to BaseDir and never empty.
type Selection struct {
	Kind    SelectionKind
	BaseDir string
	Paths   []string
}

// Archived reports whether serving the selection requires building an archive.
func (s Selection) Archived() bool {
	return s.Kind == SelectionDirectory || s.Kind == SelectionList
}

// Resolve returns the storage paths of the selection joined with BaseDir.
func (s Selection) Resolve() []string {
	out := make([]string, 0, len(s.Paths))
	for _, p := range s.Paths {
		out = append(out, JoinPath(s.BaseDir, p))
	}
	return out
}

// Entry is a node in a storage tree.
type Entry struct {
	Path    string
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// Request is the raw download request as received from a client.
type Request struct {
	Dir   string
	Files string
}

type PayloadKind int

const (
	PayloadFile PayloadKind = iota + 1
	PayloadArchive
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadFile:
		return "file"
	case PayloadArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Payload describes what a prepared download will send.
type Payload struct {
	Kind PayloadKind
	// Name is the attachment file name.
	Name string
	// Path is the storage path for PayloadFile.
	Path string
	// LocalPath is the built archive on local disk for PayloadArchive.
	LocalPath   string
	ContentType string
	Size        int64
	// InputBytes is the computed selection size, zero when no ceiling is set.
	InputBytes int64
	Entries    []ArchiveEntry
	Selection  Selection
}

// ArchiveEntry is one planned member of an archive. Dir entries carry a
// trailing '/' in Name and no Source.
type ArchiveEntry struct {
	Name    string
	Source  string
	Dir     bool
	ModTime time.Time
}

// ArchivePolicy is the configuration consumed by the size policy guard.
type ArchivePolicy struct {
	Enabled bool
	// MaxInputSize is the ceiling in bytes; zero or negative means unlimited.
	MaxInputSize int64
}

// ArchiveMethod selects the compression method for archive members.
type ArchiveMethod string

const (
	MethodStore   ArchiveMethod = "store"
	MethodDeflate ArchiveMethod = "deflate"
)

func (m ArchiveMethod) IsValid() bool {
	switch m {
	case MethodStore, MethodDeflate:
		return true
	default:
		return false
	}
}

func (m ArchiveMethod) zipMethod() uint16 {
	if m == MethodStore {
		return zip.Store
	}
	return zip.Deflate
}

func ParseArchiveMethod(s string) (ArchiveMethod, error) {
	m := ArchiveMethod(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid archive method: %s (valid methods: store, deflate)", s)
	}
	return m, nil
}

// Outcome is the recorded result of a download request.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeArchiveDisabled Outcome = "archive_disabled"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeForbidden       Outcome = "forbidden"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeError           Outcome = "error"
)

// OutcomeFromError classifies err into an Outcome.
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrArchiveDisabled):
		return OutcomeArchiveDisabled
	case errors.Is(err, ErrQuotaExceeded):
		return OutcomeQuotaExceeded
	case errors.Is(err, ErrArchiveOpenFailed), errors.Is(err, ErrStorageReadFailed):
		return OutcomeError
	case errors.Is(err, ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// DownloadRecord is one entry of the download audit log.
type DownloadRecord struct {
	ID          uuid.UUID `json:"id" yaml:"id"`
	Dir         string    `json:"dir" yaml:"dir"`
	Files       string    `json:"files" yaml:"files"`
	Kind        string    `json:"kind" yaml:"kind"`
	Outcome     Outcome   `json:"outcome" yaml:"outcome"`
	InputBytes  int64     `json:"input_bytes" yaml:"input_bytes"`
	PayloadName string    `json:"payload_name,omitempty" yaml:"payload_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

type ListQuery struct {
	DirPrefix string
	Limit     int
	Cursor    string
}

type ListResult struct {
	Items      []DownloadRecord `json:"items" yaml:"items"`
	NextCursor string           `json:"next_cursor,omitempty" yaml:"next_cursor,omitempty"`
}

// Tables holds configurable table names for the download log.
type Tables struct {
	Downloads string `mapstructure:"downloads" yaml:"downloads"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Downloads == "" {
		return errors.New("validate tables: downloads table name cannot be empty")
	}

	if !IsValidTableName(t.Downloads) {
		return fmt.Errorf("validate tables: invalid downloads table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Downloads)
	}

	return nil
}
