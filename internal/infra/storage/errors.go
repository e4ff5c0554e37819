package storage

import (
	"errors"
	"fmt"
)

// ErrRepository is the sentinel all storage failures match via errors.Is.
// "Row not found" is never an error in this layer; it is reported through
// nil/false return values so callers can treat misses as ordinary control
// flow.
var ErrRepository = errors.New("repository error")

// RepositoryError wraps a backend failure with the operation and table it
// occurred on. It carries the backend's message for diagnostics without
// exposing backend-internal structure.
type RepositoryError struct {
	Op    string
	Table string
	Err   error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }

// wrapErr converts a backend error into a *RepositoryError. Errors that are
// already repository errors pass through unchanged so nesting executor
// helpers does not double-wrap.
func wrapErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var re *RepositoryError
	if errors.As(err, &re) {
		return err
	}
	return &RepositoryError{Op: op, Table: table, Err: err}
}

// WrapErr is the exported form of wrapErr for repository packages that write
// SQL the executor cannot express and need their failures to carry the same
// shape.
func WrapErr(op, table string, err error) error {
	return wrapErr(op, table, err)
}

// IsRepositoryError reports whether err originated in the storage backend.
func IsRepositoryError(err error) bool {
	return errors.Is(err, ErrRepository)
}
