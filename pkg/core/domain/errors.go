package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the core maps onto exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrNotOwned     = errors.New("not owned")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage fault")
)

var (
	ErrInvalidURL       = fmt.Errorf("%w: invalid url", ErrInvalidInput)
	ErrInvalidSlug      = fmt.Errorf("%w: invalid slug", ErrInvalidInput)
	ErrInvalidStatus    = fmt.Errorf("%w: invalid status", ErrInvalidInput)
	ErrInvalidTags      = fmt.Errorf("%w: invalid tags", ErrInvalidInput)
	ErrInvalidDimension = fmt.Errorf("%w: invalid dimension", ErrInvalidInput)
	ErrInvalidRange     = fmt.Errorf("%w: invalid range", ErrInvalidInput)
	ErrInvalidBulkOp    = fmt.Errorf("%w: invalid bulk operation", ErrInvalidInput)
	ErrSlugTaken        = fmt.Errorf("%w: slug already taken", ErrConflict)
	ErrFolderNotFound   = fmt.Errorf("%w: folder", ErrNotFound)
)

// Kind names as they appear in API responses and bulk reports.
const (
	KindNotFound     = "not_found"
	KindNotOwned     = "not_owned"
	KindInvalidInput = "invalid_input"
	KindConflict     = "conflict"
	KindStorage      = "storage_fault"
)

// KindOf maps err onto its taxonomy kind. Unclassified errors are storage faults.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotOwned):
		return KindNotOwned
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindStorage
	}
}

// StorageError wraps a persistence failure so it classifies as ErrStorage
// while keeping the driver error reachable through errors.Unwrap.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}
