package store

import (
	"context"
	"errors"
)

// SavepointRunner is implemented by transaction scoped queriers that can isolate
// a unit of work so its failure does not poison the enclosing transaction
type SavepointRunner interface {
	Savepoint(ctx context.Context, fn func(q RowQuerier) error) error
}

// Savepoint runs fn under a savepoint when q supports one, and directly otherwise.
// Outside a Tx there is nothing to isolate from, so the direct call is equivalent.
func Savepoint(ctx context.Context, q RowQuerier, fn func(q RowQuerier) error) error {
	if sp, ok := q.(SavepointRunner); ok {
		return sp.Savepoint(ctx, fn)
	}
	return fn(q)
}

// SavepointError is a failure of the savepoint itself rather than of the work
// inside it. The enclosing transaction can no longer be trusted.
type SavepointError struct {
	Op  string
	Err error
}

func (e *SavepointError) Error() string { return "savepoint " + e.Op + ": " + e.Err.Error() }

func (e *SavepointError) Unwrap() error { return e.Err }

// IsSavepointFailure reports whether err carries a SavepointError
func IsSavepointFailure(err error) bool {
	var se *SavepointError
	return errors.As(err, &se)
}
