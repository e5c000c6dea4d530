package exp

import (
	"context"

	"github.com/aponysus/effex/effect"
)

// Pair holds two results in declared order.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple holds three results in declared order.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// PairExp combines two effects into a Pair.
type PairExp[A, B any] struct {
	mode   mode
	first  effect.Effect[A]
	second effect.Effect[B]
}

// PairSeq runs first, then second.
func PairSeq[A, B any](first effect.Effect[A], second effect.Effect[B]) *PairExp[A, B] {
	return newPair(seq, first, second)
}

// PairPar runs both concurrently.
func PairPar[A, B any](first effect.Effect[A], second effect.Effect[B]) *PairExp[A, B] {
	return newPair(par, first, second)
}

func newPair[A, B any](m mode, first effect.Effect[A], second effect.Effect[B]) *PairExp[A, B] {
	if first == nil || second == nil {
		effect.Invalid("pair", "nil member")
	}
	return &PairExp[A, B]{mode: m, first: first, second: second}
}

// Effect returns the expression as an effect.
func (x *PairExp[A, B]) Effect() effect.Effect[Pair[A, B]] {
	first, second := x.first, x.second
	return func(ctx context.Context) (Pair[A, B], error) {
		var out Pair[A, B]
		err := runPositions(ctx, x.mode, []func(context.Context) error{
			func(ctx context.Context) (err error) { out.First, err = first(ctx); return err },
			func(ctx context.Context) (err error) { out.Second, err = second(ctx); return err },
		})
		if err != nil {
			return Pair[A, B]{}, err
		}
		return out, nil
	}
}

// Run evaluates the expression.
func (x *PairExp[A, B]) Run(ctx context.Context) (Pair[A, B], error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose members are instrumented as label[0] and label[1].
func (x *PairExp[A, B]) DebugEach(label string) *PairExp[A, B] {
	return &PairExp[A, B]{
		mode:   x.mode,
		first:  x.first.Debug(indexLabel(label, 0)),
		second: x.second.Debug(indexLabel(label, 1)),
	}
}

// TripleExp combines three effects into a Triple.
type TripleExp[A, B, C any] struct {
	mode   mode
	first  effect.Effect[A]
	second effect.Effect[B]
	third  effect.Effect[C]
}

// TripleSeq runs the members in declared order.
func TripleSeq[A, B, C any](first effect.Effect[A], second effect.Effect[B], third effect.Effect[C]) *TripleExp[A, B, C] {
	return newTriple(seq, first, second, third)
}

// TriplePar runs the members concurrently.
func TriplePar[A, B, C any](first effect.Effect[A], second effect.Effect[B], third effect.Effect[C]) *TripleExp[A, B, C] {
	return newTriple(par, first, second, third)
}

func newTriple[A, B, C any](m mode, first effect.Effect[A], second effect.Effect[B], third effect.Effect[C]) *TripleExp[A, B, C] {
	if first == nil || second == nil || third == nil {
		effect.Invalid("triple", "nil member")
	}
	return &TripleExp[A, B, C]{mode: m, first: first, second: second, third: third}
}

// Effect returns the expression as an effect.
func (x *TripleExp[A, B, C]) Effect() effect.Effect[Triple[A, B, C]] {
	first, second, third := x.first, x.second, x.third
	return func(ctx context.Context) (Triple[A, B, C], error) {
		var out Triple[A, B, C]
		err := runPositions(ctx, x.mode, []func(context.Context) error{
			func(ctx context.Context) (err error) { out.First, err = first(ctx); return err },
			func(ctx context.Context) (err error) { out.Second, err = second(ctx); return err },
			func(ctx context.Context) (err error) { out.Third, err = third(ctx); return err },
		})
		if err != nil {
			return Triple[A, B, C]{}, err
		}
		return out, nil
	}
}

// Run evaluates the expression.
func (x *TripleExp[A, B, C]) Run(ctx context.Context) (Triple[A, B, C], error) {
	return x.Effect().Run(ctx)
}

// DebugEach returns a copy whose members are instrumented as label[0..2].
func (x *TripleExp[A, B, C]) DebugEach(label string) *TripleExp[A, B, C] {
	return &TripleExp[A, B, C]{
		mode:   x.mode,
		first:  x.first.Debug(indexLabel(label, 0)),
		second: x.second.Debug(indexLabel(label, 1)),
		third:  x.third.Debug(indexLabel(label, 2)),
	}
}

// runPositions runs one step per position. seq stops at the first failure;
// par runs every step and reports the failure at the lowest position.
func runPositions(ctx context.Context, m mode, steps []func(context.Context) error) error {
	if m == seq {
		for _, step := range steps {
			if err := step(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	errs, err := parallel(ctx, len(steps), func(ctx context.Context, i int) error {
		return steps[i](ctx)
	})
	if err != nil {
		return err
	}
	return firstError(errs)
}
