package exp

import (
	"context"

	"github.com/aponysus/effex/effect"
)

// ListExp collects the results of homogeneous effects into a slice ordered
// by declared position.
type ListExp[T any] struct {
	mode    mode
	members []effect.Effect[T]
}

// ListSeq runs the members in declared order and stops at the first failure.
func ListSeq[T any](members ...effect.Effect[T]) *ListExp[T] { return newList(seq, members) }

// ListPar runs the members concurrently.
func ListPar[T any](members ...effect.Effect[T]) *ListExp[T] { return newList(par, members) }

func newList[T any](m mode, members []effect.Effect[T]) *ListExp[T] {
	checkMembers("list", members)
	return &ListExp[T]{mode: m, members: cloneMembers(members)}
}

// Append returns a new ListExp with e added at the end.
func (x *ListExp[T]) Append(e effect.Effect[T]) *ListExp[T] {
	if e == nil {
		effect.Invalid("list", "nil member")
	}
	return &ListExp[T]{mode: x.mode, members: append(cloneMembers(x.members), e)}
}

// Len reports the number of members.
func (x *ListExp[T]) Len() int { return len(x.members) }

// Effect returns the expression as an effect.
func (x *ListExp[T]) Effect() effect.Effect[[]T] {
	members, m := x.members, x.mode
	return func(ctx context.Context) ([]T, error) {
		return collect(ctx, m, members)
	}
}

// Run evaluates the expression.
func (x *ListExp[T]) Run(ctx context.Context) ([]T, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose members are instrumented as label[i].
func (x *ListExp[T]) DebugEach(label string) *ListExp[T] {
	return &ListExp[T]{mode: x.mode, members: debugMembers(x.members, label)}
}

// ArrayExp assembles heterogeneous results into an Array. Wrap typed members
// with Erase.
type ArrayExp struct {
	mode    mode
	members []effect.Effect[any]
}

// Array is the positional result of an ArrayExp.
type Array []any

// ArraySeq runs the elements in declared order and stops at the first failure.
func ArraySeq(elems ...effect.Effect[any]) *ArrayExp { return newArray(seq, elems) }

// ArrayPar runs the elements concurrently.
func ArrayPar(elems ...effect.Effect[any]) *ArrayExp { return newArray(par, elems) }

func newArray(m mode, elems []effect.Effect[any]) *ArrayExp {
	checkMembers("array", elems)
	return &ArrayExp{mode: m, members: cloneMembers(elems)}
}

// Append returns a new ArrayExp with e added at the end.
func (x *ArrayExp) Append(e effect.Effect[any]) *ArrayExp {
	if e == nil {
		effect.Invalid("array", "nil element")
	}
	return &ArrayExp{mode: x.mode, members: append(cloneMembers(x.members), e)}
}

// Effect returns the expression as an effect.
func (x *ArrayExp) Effect() effect.Effect[Array] {
	members, m := x.members, x.mode
	return func(ctx context.Context) (Array, error) {
		vals, err := collect(ctx, m, members)
		if err != nil {
			return nil, err
		}
		return Array(vals), nil
	}
}

// Run evaluates the expression.
func (x *ArrayExp) Run(ctx context.Context) (Array, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose elements are instrumented as label[i].
func (x *ArrayExp) DebugEach(label string) *ArrayExp {
	return &ArrayExp{mode: x.mode, members: debugMembers(x.members, label)}
}

func collect[T any](ctx context.Context, m mode, members []effect.Effect[T]) ([]T, error) {
	vals := make([]T, len(members))
	if m == seq {
		for i, e := range members {
			v, err := e(ctx)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	}
	errs, err := parallel(ctx, len(members), func(ctx context.Context, i int) error {
		var err error
		vals[i], err = members[i](ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := firstError(errs); err != nil {
		return nil, err
	}
	return vals, nil
}

func debugMembers[T any](members []effect.Effect[T], label string) []effect.Effect[T] {
	out := make([]effect.Effect[T], len(members))
	for i, m := range members {
		out[i] = m.Debug(indexLabel(label, i))
	}
	return out
}
