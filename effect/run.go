package effect

import (
	"context"
	"runtime/debug"
	"sync"
)

// Run executes e and returns its value or failure. Unless ctx already belongs
// to a worker of the runtime pool, e runs on a fresh slot in the calling
// goroutine. A panic in a Lazy or Managed body propagates to the caller.
func (e Effect[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if e == nil {
		return zero, ErrNilEffect
	}
	var (
		v   T
		err error
	)
	if acqErr := RuntimeFrom(ctx).pool.Do(ctx, func(ctx context.Context) { v, err = e(ctx) }); acqErr != nil {
		return zero, acqErr
	}
	return v, err
}

// MustRun executes e and returns its value, panicking with the failure error.
func (e Effect[T]) MustRun(ctx context.Context) T {
	v, err := e.Run(ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// Outcome executes e and returns its Outcome.
func (e Effect[T]) Outcome(ctx context.Context) Outcome[T] {
	return OutcomeOf(e.Run(ctx))
}

// Start launches e on its own goroutine and slot and returns a handle to its
// result. A panic in e becomes a *PanicError failure.
func (e Effect[T]) Start(ctx context.Context) *Future[T] {
	f := newFuture[T]()
	if ctx == nil {
		ctx = context.Background()
	}
	if e == nil {
		f.complete(Failure[T](ErrNilEffect))
		return f
	}
	RuntimeFrom(ctx).pool.Go(ctx, func(ctx context.Context) {
		var out Outcome[T]
		func() {
			defer func() {
				if r := recover(); r != nil {
					out = Failure[T](&PanicError{Component: "start", Value: r, Stack: debug.Stack()})
				}
			}()
			out = OutcomeOf(e(ctx))
		}()
		f.complete(out)
	}, func(err error) {
		f.complete(Failure[T](err))
	})
	return f
}

// Future is the handle to an effect started with Start.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	out  Outcome[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future that already holds out.
func Completed[T any](out Outcome[T]) *Future[T] {
	f := newFuture[T]()
	f.complete(out)
	return f
}

func (f *Future[T]) complete(out Outcome[T]) {
	f.once.Do(func() {
		f.out = out
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Outcome returns the result without waiting; ok is false while pending.
func (f *Future[T]) Outcome() (out Outcome[T], ok bool) {
	select {
	case <-f.done:
		return f.out, true
	default:
		return Outcome[T]{}, false
	}
}

// Await waits for the result or for ctx to be done. The wait is a managed
// block, so awaiting from inside an effect does not pin a worker slot.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if out, ok := f.Outcome(); ok {
		return out.Get()
	}
	var ctxErr error
	Block(ctx, func() {
		select {
		case <-f.done:
		case <-ctx.Done():
			ctxErr = ctx.Err()
		}
	})
	if ctxErr != nil {
		var zero T
		return zero, ctxErr
	}
	return f.out.Get()
}
