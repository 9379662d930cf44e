// Package worker runs blocking work on a bounded pool and hands the result
// back through a future.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the number of tasks a pool runs at once when none is configured
const DefaultSize = 8

// Pool bounds the number of tasks running concurrently
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool creates a pool running at most size tasks at once
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Size returns the pool capacity
func (p *Pool) Size() int {
	return int(p.size)
}

// Future holds the eventual result of a submitted task
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Await blocks until the task has finished and returns its result
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// Submit schedules fn on the pool. The returned future fails with the context
// error, without running fn, if ctx ends before a slot frees up. A panic in fn
// is recovered and reported as the future's error.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = fmt.Errorf("worker pool: %w", err)
			return
		}
		defer p.sem.Release(1)

		f.value, f.err = run(ctx, fn)
	}()

	return f
}

func run[T any](ctx context.Context, fn func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Worker task panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
