package db

import (
	"errors"

	"github.com/valleykid/growup/op"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConstraint reports a unique index violation or an exhausted key generator.
	ErrConstraint = op.ErrConstraint
	// ErrData reports a key or record that does not fit the store's key discipline.
	ErrData = op.ErrData
	// ErrVersion is returned when a database is opened below its stored version.
	ErrVersion = errors.New("requested version is lower than the stored version")
	// ErrBlocked is returned when other connections stay open during a version change.
	ErrBlocked      = errors.New("blocked by open connections")
	ErrReadOnly     = errors.New("transaction is read-only")
	ErrInactive     = errors.New("transaction is not active")
	ErrClosed       = errors.New("connection is closed")
	ErrInvalidState = errors.New("invalid state")
)
