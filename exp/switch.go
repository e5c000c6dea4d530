package exp

import (
	"context"

	"github.com/aponysus/effex/effect"
)

// Branch computes the result of a Switch from the outcome of its source.
type Branch[I, O any] func(effect.Outcome[I]) effect.Effect[O]

// To is a Branch that ignores the source outcome.
func To[I, O any](e effect.Effect[O]) Branch[I, O] {
	return func(effect.Outcome[I]) effect.Effect[O] { return e }
}

type matchKind int

const (
	matchEquals matchKind = iota
	matchAny
	matchPredicate
)

// matcher is one case test, evaluated in declared order.
type matcher[I comparable] struct {
	kind     matchKind
	expected []effect.Outcome[I]
	pred     func(effect.Outcome[I]) bool
}

func (m matcher[I]) matches(out effect.Outcome[I]) bool {
	switch m.kind {
	case matchEquals:
		return effect.OutcomeEqual(m.expected[0], out)
	case matchAny:
		for _, want := range m.expected {
			if effect.OutcomeEqual(want, out) {
				return true
			}
		}
		return false
	case matchPredicate:
		return m.pred(out)
	default:
		return false
	}
}

type switchCase[I comparable, O any] struct {
	match  matcher[I]
	branch Branch[I, O]
}

// SwitchExp evaluates a source effect and applies the branch of the first
// matching case to its outcome, or the default branch when nothing matches.
// Failures of the source are outcomes too and can be matched.
type SwitchExp[I comparable, O any] struct {
	source    effect.Effect[I]
	cases     []switchCase[I, O]
	otherwise Branch[I, O]
}

// Switch starts a SwitchExp over source.
func Switch[I comparable, O any](source effect.Effect[I]) *SwitchExp[I, O] {
	if source == nil {
		effect.Invalid("switch", "nil source")
	}
	return &SwitchExp[I, O]{source: source}
}

func (x *SwitchExp[I, O]) with(m matcher[I], branch Branch[I, O]) *SwitchExp[I, O] {
	if branch == nil {
		effect.Invalid("switch", "nil branch")
	}
	out := *x
	out.cases = append(append([]switchCase[I, O](nil), x.cases...), switchCase[I, O]{match: m, branch: branch})
	return &out
}

// Is matches a successful source whose value equals v.
func (x *SwitchExp[I, O]) Is(v I, branch Branch[I, O]) *SwitchExp[I, O] {
	return x.with(matcher[I]{kind: matchEquals, expected: []effect.Outcome[I]{effect.Success(v)}}, branch)
}

// IsOutcome matches an outcome equal to want; failures compare with errors.Is.
func (x *SwitchExp[I, O]) IsOutcome(want effect.Outcome[I], branch Branch[I, O]) *SwitchExp[I, O] {
	return x.with(matcher[I]{kind: matchEquals, expected: []effect.Outcome[I]{want}}, branch)
}

// In matches a successful source whose value equals any of vs.
func (x *SwitchExp[I, O]) In(vs []I, branch Branch[I, O]) *SwitchExp[I, O] {
	if len(vs) == 0 {
		effect.Invalid("switch", "empty value list")
	}
	expected := make([]effect.Outcome[I], len(vs))
	for i, v := range vs {
		expected[i] = effect.Success(v)
	}
	return x.with(matcher[I]{kind: matchAny, expected: expected}, branch)
}

// When matches outcomes accepted by pred.
func (x *SwitchExp[I, O]) When(pred func(effect.Outcome[I]) bool, branch Branch[I, O]) *SwitchExp[I, O] {
	if pred == nil {
		effect.Invalid("switch", "nil predicate")
	}
	return x.with(matcher[I]{kind: matchPredicate, pred: pred}, branch)
}

// Default sets the branch applied when no case matches.
func (x *SwitchExp[I, O]) Default(branch Branch[I, O]) *SwitchExp[I, O] {
	if branch == nil {
		effect.Invalid("switch", "nil default")
	}
	out := *x
	out.otherwise = branch
	return &out
}

// Effect returns the expression as an effect. A Switch without a default is
// a construction error.
func (x *SwitchExp[I, O]) Effect() effect.Effect[O] {
	if x.otherwise == nil {
		effect.Invalid("switch", "no default branch")
	}
	source, cases, otherwise := x.source, x.cases, x.otherwise
	return func(ctx context.Context) (O, error) {
		out := effect.OutcomeOf(source(ctx))
		for _, c := range cases {
			if c.match.matches(out) {
				return runMember(ctx, c.branch(out))
			}
		}
		return runMember(ctx, otherwise(out))
	}
}

// Run evaluates the expression.
func (x *SwitchExp[I, O]) Run(ctx context.Context) (O, error) { return x.Effect().Run(ctx) }

// DebugEach returns a copy whose source is instrumented as label.source and
// whose branches are instrumented as label[i] or label.default.
func (x *SwitchExp[I, O]) DebugEach(label string) *SwitchExp[I, O] {
	out := &SwitchExp[I, O]{
		source: x.source.Debug(label + ".source"),
		cases:  make([]switchCase[I, O], len(x.cases)),
	}
	for i, c := range x.cases {
		out.cases[i] = switchCase[I, O]{match: c.match, branch: debugBranch(c.branch, indexLabel(label, i))}
	}
	if x.otherwise != nil {
		out.otherwise = debugBranch(x.otherwise, label+".default")
	}
	return out
}

func debugBranch[I, O any](b Branch[I, O], label string) Branch[I, O] {
	return func(out effect.Outcome[I]) effect.Effect[O] {
		e := b(out)
		if e == nil {
			return nil
		}
		return e.Debug(label)
	}
}
