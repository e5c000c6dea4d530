package exp

import (
	"context"

	"github.com/aponysus/effex/effect"
)

type boolOp int

const (
	opAll boolOp = iota
	opAny
)

func (op boolOp) builder() string {
	if op == opAny {
		return "any"
	}
	return "all"
}

// BoolExp is the conjunction (All) or disjunction (Any) of boolean effects.
// With no members All is true and Any is false.
type BoolExp struct {
	op      boolOp
	mode    mode
	members []effect.Effect[bool]
}

// AllSeq evaluates members left to right and stops at the first false.
func AllSeq(members ...effect.Effect[bool]) *BoolExp { return newBool(opAll, seq, members) }

// AllPar evaluates every member concurrently and combines all results.
func AllPar(members ...effect.Effect[bool]) *BoolExp { return newBool(opAll, par, members) }

// AnySeq evaluates members left to right and stops at the first true.
func AnySeq(members ...effect.Effect[bool]) *BoolExp { return newBool(opAny, seq, members) }

// AnyPar evaluates every member concurrently and combines all results.
func AnyPar(members ...effect.Effect[bool]) *BoolExp { return newBool(opAny, par, members) }

func newBool(op boolOp, m mode, members []effect.Effect[bool]) *BoolExp {
	checkMembers(op.builder(), members)
	return &BoolExp{op: op, mode: m, members: cloneMembers(members)}
}

// decisive is the member value that settles the result.
func (x *BoolExp) decisive() bool { return x.op == opAny }

// Effect returns the expression as an effect.
func (x *BoolExp) Effect() effect.Effect[bool] {
	members := x.members
	stop := x.decisive()
	if x.mode == seq {
		return func(ctx context.Context) (bool, error) {
			for _, m := range members {
				v, err := m(ctx)
				if err != nil {
					return false, err
				}
				if v == stop {
					return stop, nil
				}
			}
			return !stop, nil
		}
	}
	return func(ctx context.Context) (bool, error) {
		vals := make([]bool, len(members))
		errs, err := parallel(ctx, len(members), func(ctx context.Context, i int) error {
			var err error
			vals[i], err = members[i](ctx)
			return err
		})
		if err != nil {
			return false, err
		}
		// Fold in declared order so the result matches the seq evaluation.
		for i := range members {
			if errs[i] != nil {
				return false, errs[i]
			}
			if vals[i] == stop {
				return stop, nil
			}
		}
		return !stop, nil
	}
}

// Run evaluates the expression.
func (x *BoolExp) Run(ctx context.Context) (bool, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose members are instrumented as label[i].
func (x *BoolExp) DebugEach(label string) *BoolExp {
	return &BoolExp{op: x.op, mode: x.mode, members: debugMembers(x.members, label)}
}
