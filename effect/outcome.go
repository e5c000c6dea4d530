package effect

import "errors"

// Outcome is the result of running an Effect: a Success carrying a value or a
// Failure carrying an error.
type Outcome[T any] struct {
	value  T
	err    error
	failed bool
}

// Success returns a successful Outcome.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Failure returns a failed Outcome. A nil err is replaced by ErrMissingFailure.
func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = ErrMissingFailure
	}
	return Outcome[T]{err: err, failed: true}
}

// OutcomeOf builds an Outcome from a (value, error) pair.
func OutcomeOf[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

func (o Outcome[T]) IsSuccess() bool { return !o.failed }
func (o Outcome[T]) IsFailure() bool { return o.failed }

// Value returns the success value, or the zero value for a Failure.
func (o Outcome[T]) Value() T { return o.value }

// Err returns the failure error, or nil for a Success.
func (o Outcome[T]) Err() error { return o.err }

// Get returns the outcome as a (value, error) pair.
func (o Outcome[T]) Get() (T, error) {
	if o.failed {
		var zero T
		return zero, o.err
	}
	return o.value, nil
}

// OutcomeEqual compares outcomes: successes by value, failures by errors.Is
// in either direction.
func OutcomeEqual[T comparable](a, b Outcome[T]) bool {
	if a.failed != b.failed {
		return false
	}
	if !a.failed {
		return a.value == b.value
	}
	return errors.Is(a.err, b.err) || errors.Is(b.err, a.err)
}
