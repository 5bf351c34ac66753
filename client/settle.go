package client

import "sync"

// settleOnce is a single-assignment result cell. The first resolve or reject
// wins; later ones are discarded and report false.
type settleOnce[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newSettleOnce[T any]() *settleOnce[T] {
	return &settleOnce[T]{done: make(chan struct{})}
}

func (s *settleOnce[T]) settle(value T, err error) bool {
	won := false
	s.once.Do(func() {
		s.value, s.err = value, err
		won = true
		close(s.done)
	})
	return won
}

func (s *settleOnce[T]) resolve(value T) bool {
	return s.settle(value, nil)
}

func (s *settleOnce[T]) reject(err error) bool {
	var zero T
	return s.settle(zero, err)
}

// settled reports whether the cell holds a result, without blocking.
func (s *settleOnce[T]) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// result returns the settled value. Call it only once settled reports true.
func (s *settleOnce[T]) result() (T, error) {
	return s.value, s.err
}
