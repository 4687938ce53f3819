package compose

import (
	"context"
	"sync"
)

// future is a value that is resolved exactly once. Later resolutions are ignored,
// so it can be wired to signals that may fire more than once.
type future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

// resolve sets the outcome. It reports whether this call resolved the future.
func (f *future[T]) resolve(val T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

// await blocks until the future is resolved or ctx is done.
func (f *future[T]) await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
