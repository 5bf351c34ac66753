package client

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Client is an *Error whose Kind is
// one of these, so errors.Is(err, ErrQuery) works alongside errors.Is on the
// engine cause.
var (
	// ErrInvalidArgument reports a caller parameter that violates a precondition.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreNotFound reports a store that does not exist after opening.
	ErrStoreNotFound = errors.New("store not found")
	// ErrConnection reports a failure to open or upgrade the database.
	ErrConnection = errors.New("connection error")
	ErrQuery      = errors.New("query error")
	ErrMutation   = errors.New("mutation error")
)

// Error describes a failed client operation.
type Error struct {
	// Op is the client operation, e.g. "get" or "addStore".
	Op string
	// Store is the store the operation targeted, if any.
	Store string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	prefix := e.Op
	if e.Store != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.Store)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", prefix, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// wrap returns err as an *Error of the given kind. An *Error passes through
// unchanged so the innermost kind wins.
func wrap(op, store string, kind, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Op: op, Store: store, Kind: kind, Err: err}
}

func invalidArgument(op, store, format string, args ...any) error {
	return &Error{Op: op, Store: store, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}
