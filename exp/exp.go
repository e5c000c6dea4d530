// Package exp composes effects into expressions: boolean algebra, conditional
// branching, pattern matching and structural assembly of results.
//
// Every expression is built in one of two modes. A seq expression runs its
// members one after another in declared order and may stop early. A par
// expression launches every member on the runtime pool and waits for all of
// them. In both modes results are assembled by declared position, never by
// completion order, and a failure is reported from the lowest position that
// failed.
//
// Expressions are immutable: Append and the Switch builders return new
// values. Parallel members are not cancelled when the result is already
// known; cancel the context passed to Run to stop them.
package exp

import (
	"context"
	"fmt"

	"github.com/aponysus/effex/effect"
)

type mode int

const (
	seq mode = iota
	par
)

// parallel runs run(ctx, i) for every i in [0, n) on the runtime pool and
// waits for all of them. errs[i] holds member i's failure. The returned error
// is only set when a member could not obtain a slot.
func parallel(ctx context.Context, n int, run func(ctx context.Context, i int) error) (errs []error, err error) {
	errs = make([]error, n)
	if n == 0 {
		return errs, nil
	}
	g := effect.RuntimeFrom(ctx).Pool().NewGroup(ctx)
	for i := range n {
		g.Go(func(ctx context.Context) error {
			errs[i] = run(ctx, i)
			return nil
		})
	}
	return errs, g.Wait()
}

// firstError returns the failure at the lowest position.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkMembers[T any](builder string, members []effect.Effect[T]) {
	for i, m := range members {
		if m == nil {
			effect.Invalid(builder, fmt.Sprintf("nil member at position %d", i))
		}
	}
}

func cloneMembers[T any](members []effect.Effect[T]) []effect.Effect[T] {
	return append([]effect.Effect[T](nil), members...)
}

func indexLabel(label string, i int) string {
	return fmt.Sprintf("%s[%d]", label, i)
}

// runMember runs an effect produced by a supplier, treating a nil effect as a
// failure.
func runMember[T any](ctx context.Context, e effect.Effect[T]) (T, error) {
	if e == nil {
		var zero T
		return zero, effect.ErrNilEffect
	}
	return e(ctx)
}

// Erase turns an Effect[T] into an Effect[any], for heterogeneous members of
// objects and arrays.
func Erase[T any](e effect.Effect[T]) effect.Effect[any] {
	if e == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		v, err := e(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
