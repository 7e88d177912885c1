package store

import "fmt"

// Error is the single structured error type surfaced by store backends.
// It carries the failed operation and collection for context and wraps the
// underlying cause so callers can match sentinels with errors.Is.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with operation and collection context.
func NewError(op, collection string, err error) *Error {
	return &Error{Op: op, Collection: collection, Err: err}
}
