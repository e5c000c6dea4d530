// Package effect provides Effect, a lazy description of a computation that
// yields a value or fails, together with its construction forms,
// transformations, retry/repeat scheduling and terminal operations.
//
// An Effect does nothing until a terminal operation (Run, MustRun, Outcome or
// Start) is called, and running it again re-runs its body. Every
// transformation returns a new Effect.
package effect

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/aponysus/effex/sched"
)

// Effect is a deferred computation producing a T or an error.
//
// The context passed to the body carries the runtime and, while the effect
// runs on a pool, the worker slot it holds. Bodies that block should go
// through Managed, ManagedTask or Block so the slot is handed back while they
// wait.
type Effect[T any] func(ctx context.Context) (T, error)

// Succeed returns an effect that yields v.
func Succeed[T any](v T) Effect[T] {
	return func(context.Context) (T, error) { return v, nil }
}

// Fail returns an effect that fails with err.
func Fail[T any](err error) Effect[T] {
	if err == nil {
		err = ErrMissingFailure
	}
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// Lazy defers f until the effect runs. f must not block; a panic in f
// propagates to the caller of the terminal operation.
func Lazy[T any](f func() T) Effect[T] {
	if f == nil {
		Invalid("lazy", "nil supplier")
	}
	return func(context.Context) (T, error) { return f(), nil }
}

// LazyOn is Lazy on an explicit pool. The caller's slot (if any) is handed
// back while f waits for and runs on a slot of pool.
func LazyOn[T any](pool *sched.Pool, f func() T) Effect[T] {
	if pool == nil {
		Invalid("lazy", "nil pool")
	}
	return On(pool, Lazy(f))
}

// Task defers f until the effect runs. An error returned by f becomes the
// failure, and so does a panic, as a *PanicError.
func Task[T any](f func() (T, error)) Effect[T] {
	if f == nil {
		Invalid("task", "nil supplier")
	}
	return func(context.Context) (v T, err error) {
		defer recoverInto("task", &err)
		return f()
	}
}

// TaskOn is Task on an explicit pool.
func TaskOn[T any](pool *sched.Pool, f func() (T, error)) Effect[T] {
	if pool == nil {
		Invalid("task", "nil pool")
	}
	return On(pool, Task(f))
}

// TaskCtx is Task for bodies that need the context.
func TaskCtx[T any](f func(ctx context.Context) (T, error)) Effect[T] {
	if f == nil {
		Invalid("task", "nil supplier")
	}
	return func(ctx context.Context) (v T, err error) {
		defer recoverInto("task", &err)
		return f(ctx)
	}
}

// On runs e on a slot of pool instead of the caller's pool.
func On[T any](pool *sched.Pool, e Effect[T]) Effect[T] {
	if pool == nil {
		Invalid("on", "nil pool")
	}
	if e == nil {
		Invalid("on", "nil effect")
	}
	return func(ctx context.Context) (T, error) {
		var (
			v   T
			err error
		)
		acquire := func() error {
			return pool.Do(ctx, func(ctx context.Context) { v, err = e(ctx) })
		}
		var acqErr error
		if pool.InWorker(ctx) {
			acqErr = acquire()
		} else {
			Block(ctx, func() { acqErr = acquire() })
		}
		if acqErr != nil {
			var zero T
			return zero, acqErr
		}
		return v, err
	}
}

// Managed defers a blocking f. While f runs, the worker slot the effect holds
// is handed back to the pool, so hundreds of concurrently blocked bodies do
// not starve it. A panic in f propagates.
func Managed[T any](f func() T) Effect[T] {
	if f == nil {
		Invalid("managed", "nil supplier")
	}
	return func(ctx context.Context) (T, error) {
		var v T
		Block(ctx, func() { v = f() })
		return v, nil
	}
}

// ManagedTask is Managed for bodies that can fail. Errors and panics become
// failures, as with Task.
func ManagedTask[T any](f func(ctx context.Context) (T, error)) Effect[T] {
	if f == nil {
		Invalid("managed", "nil supplier")
	}
	return func(ctx context.Context) (v T, err error) {
		Block(ctx, func() {
			defer recoverInto("managed task", &err)
			v, err = f(ctx)
		})
		return v, err
	}
}

// Block runs a blocking fn in managed mode. The slot handed back is the one
// the caller holds, on the runtime pool or on the pool given to On, LazyOn or
// TaskOn. Effect bodies that wait on something call it.
func Block(ctx context.Context, fn func()) {
	sched.Block(ctx, fn)
}

// Async bridges callback-driven work. start is called when the effect runs
// and must eventually call done exactly once; later calls are ignored. The
// wait for done is a managed block and ends early if ctx is done.
func Async[T any](start func(ctx context.Context, done func(T, error))) Effect[T] {
	if start == nil {
		Invalid("async", "nil start function")
	}
	return func(ctx context.Context) (T, error) {
		ch := make(chan Outcome[T], 1)
		var once sync.Once
		done := func(v T, err error) {
			once.Do(func() { ch <- OutcomeOf(v, err) })
		}

		var startErr error
		func() {
			defer recoverInto("async start", &startErr)
			start(ctx, done)
		}()
		if startErr != nil {
			var zero T
			return zero, startErr
		}

		var out Outcome[T]
		Block(ctx, func() {
			select {
			case out = <-ch:
			case <-ctx.Done():
				out = Failure[T](ctx.Err())
			}
		})
		return out.Get()
	}
}

// FromFuture bridges a future. get is called each time the effect runs.
func FromFuture[T any](get func() *Future[T]) Effect[T] {
	if get == nil {
		Invalid("from future", "nil future supplier")
	}
	return func(ctx context.Context) (T, error) {
		f := get()
		if f == nil {
			var zero T
			return zero, ErrNilEffect
		}
		return f.Await(ctx)
	}
}

// Resource acquires a resource, runs use with it and releases it on every
// exit path: success, failure, panic and cancellation (which surfaces as a
// failure of use).
//
// A release error after a successful use becomes the failure. After a failed
// use, both errors are joined.
func Resource[R, T any](acquire Effect[R], release func(R) error, use func(R) Effect[T]) Effect[T] {
	switch {
	case acquire == nil:
		Invalid("resource", "nil acquire effect")
	case release == nil:
		Invalid("resource", "nil release function")
	case use == nil:
		Invalid("resource", "nil use function")
	}
	return func(ctx context.Context) (T, error) {
		var zero T
		r, err := acquire(ctx)
		if err != nil {
			return zero, err
		}

		released := false
		defer func() {
			if !released {
				_ = release(r)
			}
		}()

		var v T
		body := use(r)
		if body == nil {
			err = ErrNilEffect
		} else {
			v, err = body(ctx)
		}

		released = true
		relErr := release(r)
		switch {
		case err != nil && relErr != nil:
			return zero, errors.Join(err, fmt.Errorf("effex: release resource: %w", relErr))
		case err != nil:
			return zero, err
		case relErr != nil:
			return zero, fmt.Errorf("effex: release resource: %w", relErr)
		}
		return v, nil
	}
}

func recoverInto(component string, err *error) {
	if r := recover(); r != nil {
		*err = &PanicError{Component: component, Value: r, Stack: debug.Stack()}
	}
}
