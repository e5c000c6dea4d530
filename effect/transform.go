package effect

import (
	"context"
	"log/slog"
)

// Map transforms the success value of e. A failure passes through unchanged.
func Map[T, U any](e Effect[T], f func(T) U) Effect[U] {
	if e == nil {
		Invalid("map", "nil effect")
	}
	if f == nil {
		Invalid("map", "nil function")
	}
	return func(ctx context.Context) (U, error) {
		v, err := e(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v), nil
	}
}

// Then runs e and, on success, the effect f builds from its value. A failure
// of e short-circuits and f is not called.
func Then[T, U any](e Effect[T], f func(T) Effect[U]) Effect[U] {
	if e == nil {
		Invalid("then", "nil effect")
	}
	if f == nil {
		Invalid("then", "nil continuation")
	}
	return func(ctx context.Context) (U, error) {
		v, err := e(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return runNext(ctx, f(v))
	}
}

// ThenOr handles both outcomes of e explicitly: onSuccess builds the next
// effect from the value and onFailure from the error, e.g. to recover with a
// replacement effect.
func ThenOr[T, U any](e Effect[T], onSuccess func(T) Effect[U], onFailure func(error) Effect[U]) Effect[U] {
	if e == nil {
		Invalid("then", "nil effect")
	}
	if onSuccess == nil || onFailure == nil {
		Invalid("then", "nil continuation")
	}
	return func(ctx context.Context) (U, error) {
		v, err := e(ctx)
		if err != nil {
			return runNext(ctx, onFailure(err))
		}
		return runNext(ctx, onSuccess(v))
	}
}

// Recover replaces a failure of e with the effect f builds from the error.
func Recover[T any](e Effect[T], f func(error) Effect[T]) Effect[T] {
	return ThenOr(e, Succeed[T], f)
}

func runNext[U any](ctx context.Context, next Effect[U]) (U, error) {
	if next == nil {
		var zero U
		return zero, ErrNilEffect
	}
	return next(ctx)
}

// PeekSuccess calls fn with the value when e succeeds. The outcome is never
// altered: a panic in fn is recovered and logged.
func (e Effect[T]) PeekSuccess(fn func(T)) Effect[T] {
	if e == nil {
		Invalid("peek", "nil effect")
	}
	if fn == nil {
		Invalid("peek", "nil consumer")
	}
	return func(ctx context.Context) (T, error) {
		v, err := e(ctx)
		if err == nil {
			peek(ctx, "success", func() { fn(v) })
		}
		return v, err
	}
}

// PeekFailure calls fn with the error when e fails. It never suppresses the
// failure.
func (e Effect[T]) PeekFailure(fn func(error)) Effect[T] {
	if e == nil {
		Invalid("peek", "nil effect")
	}
	if fn == nil {
		Invalid("peek", "nil consumer")
	}
	return func(ctx context.Context) (T, error) {
		v, err := e(ctx)
		if err != nil {
			peek(ctx, "failure", func() { fn(err) })
		}
		return v, err
	}
}

func peek(ctx context.Context, which string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			RuntimeFrom(ctx).logger.WarnContext(ctx, "effex: peek consumer panicked",
				slog.String("peek", which),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
