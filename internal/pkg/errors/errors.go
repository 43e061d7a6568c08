package errors

import "errors"

var (
	// ErrNotFound is returned when a lookup by student id misses the index.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange is returned for an award slot outside [0, capacity).
	ErrOutOfRange = errors.New("award slot out of range")
	// ErrUnknownCategory is returned for a label outside the category enum.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrDecode marks a snapshot that could not be decoded. Nothing is
	// destroyed when an import fails with this error.
	ErrDecode = errors.New("snapshot decode failed")
	// ErrRebuildIncomplete marks a rebuild that failed after storage was
	// already cleared; manual recovery is required.
	ErrRebuildIncomplete = errors.New("rebuild incomplete: storage was cleared")
)
