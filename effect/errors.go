package effect

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilEffect is the failure of running a nil Effect, including a nil
	// Effect returned by a Then continuation.
	ErrNilEffect = errors.New("effex: nil effect")

	// ErrMissingFailure stands in for the error of Failure(nil).
	ErrMissingFailure = errors.New("effex: failure without error")
)

// ConstructionError reports invalid builder input. Builders panic with it
// when the effect is built, before anything runs.
type ConstructionError struct {
	Builder string
	Reason  string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("effex: invalid %s: %s", e.Builder, e.Reason)
}

// Invalid panics with a ConstructionError. Builders in other packages use it
// to fail the same way.
func Invalid(builder, reason string) {
	panic(&ConstructionError{Builder: builder, Reason: reason})
}

// PanicError is the failure produced when a Task body (or a Start-ed effect)
// panics.
type PanicError struct {
	Component string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("effex: panic in %s: %v", e.Component, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// BudgetError is returned by a retried effect whose next attempt was refused
// by its budget. It wraps the last failure.
type BudgetError struct {
	Name   string
	Reason string
	Err    error
}

func (e *BudgetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("effex: retry budget %q denied attempt (%s)", e.Name, e.Reason)
	}
	return fmt.Sprintf("effex: retry budget %q denied attempt (%s): %v", e.Name, e.Reason, e.Err)
}

func (e *BudgetError) Unwrap() error { return e.Err }

// NoClassifierError is returned when a retry names a classifier the runtime
// registry does not have and the runtime denies missing classifiers.
type NoClassifierError struct {
	Name  string
	Known []string
}

func (e *NoClassifierError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("effex: classifier not found: %s", e.Name)
	}
	return fmt.Sprintf("effex: classifier not found: %s (have: %s)", e.Name, strings.Join(e.Known, ", "))
}
