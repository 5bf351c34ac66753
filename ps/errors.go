package ps

import "errors"

var (
	ErrNotInitialized  = errors.New("persistence layer not initialized")
	ErrClosed          = errors.New("persistence: store is closed")
	ErrNotFound        = errors.New("persistence: key not found")
	ErrTxDone          = errors.New("persistence: transaction already finished")
	ErrReadOnlyTx      = errors.New("persistence: write in read-only transaction")
	ErrIteratorInvalid = errors.New("persistence: iterator is not positioned")
	ErrUnknownTx       = errors.New("persistence: unknown transaction")
	ErrDiverged        = errors.New("persistence: histories have diverged")
)
