package store

import (
	"errors"
	"fmt"
)

const (
	BackendSQLite = "sqlite"
	BackendXLSX   = "xlsx"
)

// BackendError is a failed write or read against one storage mirror. The
// in-memory index is unaffected; the mirror lags until the next persist.
type BackendError struct {
	Backend   string
	Op        string
	StudentID int64
	Err       error
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	if e.StudentID != 0 {
		return fmt.Sprintf("%s %s (student %d): %v", e.Backend, e.Op, e.StudentID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// PersistResult reports how a single persist fared in each backend. A
// failed backend is logged and counted, never propagated as a failure of
// the operation that triggered the persist.
type PersistResult struct {
	Relational error
	Tabular    error
}

func (r PersistResult) OK() bool { return r.Relational == nil && r.Tabular == nil }

func (r PersistResult) Err() error { return errors.Join(r.Relational, r.Tabular) }
