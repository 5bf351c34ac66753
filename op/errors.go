package op

import "errors"

var (
	// ErrConstraint reports a uniqueness or key generator violation.
	ErrConstraint = errors.New("constraint violation")
	// ErrData reports a record or key that does not fit the store's key discipline.
	ErrData        = errors.New("data error")
	ErrNoIndex     = errors.New("index not found")
	ErrIndexExists = errors.New("index already exists")
)
