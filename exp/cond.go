package exp

import (
	"context"
	"fmt"

	"github.com/aponysus/effex/effect"
)

// Clause pairs a condition with the supplier of the effect to run when it is
// the first true condition.
type Clause[T any] struct {
	cond effect.Effect[bool]
	then func() effect.Effect[T]
}

// When builds a Clause. then is only called if its branch is selected.
func When[T any](cond effect.Effect[bool], then func() effect.Effect[T]) Clause[T] {
	if cond == nil {
		effect.Invalid("cond", "nil condition")
	}
	if then == nil {
		effect.Invalid("cond", "nil consequence")
	}
	return Clause[T]{cond: cond, then: then}
}

// CondExp runs the branch of the first true condition in declared order, or
// the default branch when none is true. Only the selected supplier is called.
type CondExp[T any] struct {
	mode      mode
	clauses   []Clause[T]
	otherwise func() effect.Effect[T]
	label     string
}

// CondSeq evaluates conditions one at a time and stops at the first true one.
func CondSeq[T any](otherwise func() effect.Effect[T], clauses ...Clause[T]) *CondExp[T] {
	return newCond(seq, otherwise, clauses)
}

// CondPar evaluates every condition concurrently, then runs the branch of
// the first true condition in declared order.
func CondPar[T any](otherwise func() effect.Effect[T], clauses ...Clause[T]) *CondExp[T] {
	return newCond(par, otherwise, clauses)
}

// IfElse runs consequence when pred is true and alternative otherwise. The
// unselected supplier is never called.
func IfElse[T any](pred effect.Effect[bool], consequence, alternative func() effect.Effect[T]) *CondExp[T] {
	if alternative == nil {
		effect.Invalid("if else", "nil alternative")
	}
	return newCond(seq, alternative, []Clause[T]{When(pred, consequence)})
}

func newCond[T any](m mode, otherwise func() effect.Effect[T], clauses []Clause[T]) *CondExp[T] {
	if otherwise == nil {
		effect.Invalid("cond", "nil default")
	}
	for i, c := range clauses {
		if c.cond == nil || c.then == nil {
			effect.Invalid("cond", fmt.Sprintf("incomplete clause at position %d", i))
		}
	}
	return &CondExp[T]{mode: m, clauses: append([]Clause[T](nil), clauses...), otherwise: otherwise}
}

// branch resolves the supplier for clause i, or the default for i < 0.
func (x *CondExp[T]) branch(i int) effect.Effect[T] {
	var e effect.Effect[T]
	label := ""
	if i < 0 {
		e = x.otherwise()
		if x.label != "" {
			label = x.label + ".default"
		}
	} else {
		e = x.clauses[i].then()
		if x.label != "" {
			label = indexLabel(x.label, i) + ".then"
		}
	}
	if e != nil && label != "" {
		e = e.Debug(label)
	}
	return e
}

// Effect returns the expression as an effect.
func (x *CondExp[T]) Effect() effect.Effect[T] {
	if x.mode == seq {
		return func(ctx context.Context) (T, error) {
			for i, c := range x.clauses {
				ok, err := c.cond(ctx)
				if err != nil {
					var zero T
					return zero, err
				}
				if ok {
					return runMember(ctx, x.branch(i))
				}
			}
			return runMember(ctx, x.branch(-1))
		}
	}
	return func(ctx context.Context) (T, error) {
		var zero T
		vals := make([]bool, len(x.clauses))
		errs, err := parallel(ctx, len(x.clauses), func(ctx context.Context, i int) error {
			var err error
			vals[i], err = x.clauses[i].cond(ctx)
			return err
		})
		if err != nil {
			return zero, err
		}
		for i := range x.clauses {
			if errs[i] != nil {
				return zero, errs[i]
			}
			if vals[i] {
				return runMember(ctx, x.branch(i))
			}
		}
		return runMember(ctx, x.branch(-1))
	}
}

// Run evaluates the expression.
func (x *CondExp[T]) Run(ctx context.Context) (T, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose conditions are instrumented as label[i] and
// whose selected branch is instrumented as label[i].then or label.default.
func (x *CondExp[T]) DebugEach(label string) *CondExp[T] {
	out := &CondExp[T]{mode: x.mode, otherwise: x.otherwise, label: label, clauses: make([]Clause[T], len(x.clauses))}
	for i, c := range x.clauses {
		out.clauses[i] = Clause[T]{cond: c.cond.Debug(indexLabel(label, i)), then: c.then}
	}
	return out
}
