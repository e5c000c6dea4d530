package exp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/effex/effect"
)

func TestBoolAlgebra_Property(t *testing.T) {
	ctx := testContext(t, 4)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	and := func(vs []bool) bool {
		for _, v := range vs {
			if !v {
				return false
			}
		}
		return true
	}
	or := func(vs []bool) bool {
		for _, v := range vs {
			if v {
				return true
			}
		}
		return false
	}

	properties.Property("all seq and par equal conjunction", prop.ForAll(
		func(vs []bool) bool {
			s, err1 := AllSeq(bools(vs)...).Run(ctx)
			p, err2 := AllPar(bools(vs)...).Run(ctx)
			return err1 == nil && err2 == nil && s == and(vs) && p == and(vs)
		},
		gen.SliceOf(gen.Bool()),
	))
	properties.Property("any seq and par equal disjunction", prop.ForAll(
		func(vs []bool) bool {
			s, err1 := AnySeq(bools(vs)...).Run(ctx)
			p, err2 := AnyPar(bools(vs)...).Run(ctx)
			return err1 == nil && err2 == nil && s == or(vs) && p == or(vs)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestAllSeq_ShortCircuits(t *testing.T) {
	ctx := testContext(t, 2)
	var runs atomic.Int64
	v, err := AllSeq(counted(&runs, true), counted(&runs, false), counted(&runs, true)).Run(ctx)
	require.NoError(t, err)
	assert.False(t, v)
	assert.Equal(t, int64(2), runs.Load())

	runs.Store(0)
	v, err = AnySeq(counted(&runs, false), counted(&runs, true), counted(&runs, false)).Run(ctx)
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, int64(2), runs.Load())
}

func TestAllPar_RunsEveryMember(t *testing.T) {
	ctx := testContext(t, 2)
	var runs atomic.Int64
	v, err := AnyPar(counted(&runs, true), counted(&runs, false), counted(&runs, false)).Run(ctx)
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, int64(3), runs.Load(), "siblings run to completion")
}

func TestBoolPar_FailuresFollowDeclaredOrder(t *testing.T) {
	ctx := testContext(t, 4)
	first := errors.New("first")
	second := errors.New("second")

	slowFail := effect.ManagedTask(func(context.Context) (bool, error) {
		time.Sleep(20 * time.Millisecond)
		return false, first
	})
	_, err := AllPar(slowFail, effect.Fail[bool](second)).Run(ctx)
	assert.ErrorIs(t, err, first, "the lowest failing position wins, not the earliest")

	v, err := AllPar(effect.Succeed(false), effect.Fail[bool](second)).Run(ctx)
	require.NoError(t, err, "a decisive value before the failure settles the result")
	assert.False(t, v)

	_, err = AllSeq(effect.Succeed(true), effect.Fail[bool](second)).Run(ctx)
	assert.ErrorIs(t, err, second)
}

func TestBool_Empty(t *testing.T) {
	ctx := testContext(t, 1)
	assert.True(t, AllSeq().Effect().MustRun(ctx))
	assert.True(t, AllPar().Effect().MustRun(ctx))
	assert.False(t, AnySeq().Effect().MustRun(ctx))
	assert.False(t, AnyPar().Effect().MustRun(ctx))
}

func TestBool_NilMember(t *testing.T) {
	requireConstructionError(t, "all", func() { AllSeq(effect.Succeed(true), nil) })
	requireConstructionError(t, "any", func() { AnyPar(nil) })
}
