package satchel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a storage entry does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a storage entry exists but cannot be read
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned when request validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrArchiveDisabled is returned when archive downloads are turned off
	ErrArchiveDisabled = errors.New("archive downloads disabled")
	// ErrQuotaExceeded is returned when a selection is larger than the configured ceiling
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrArchiveOpenFailed is returned when the archive container cannot be created
	ErrArchiveOpenFailed = errors.New("archive open failed")
	// ErrStorageReadFailed is returned when a storage entry cannot be read while building an archive
	ErrStorageReadFailed = errors.New("storage read failed")
)

// QuotaError carries the computed selection size and the ceiling it broke.
type QuotaError struct {
	Total int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("selection size %d exceeds limit %d", e.Total, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
