package exp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aponysus/effex/effect"
	"github.com/aponysus/effex/sched"
)

func testContext(t *testing.T, size int, opts ...effect.Option) context.Context {
	t.Helper()
	rt := effect.NewRuntime(append([]effect.Option{effect.WithPool(sched.New(size))}, opts...)...)
	return effect.WithRuntime(context.Background(), rt)
}

func requireConstructionError(t *testing.T, builder string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a construction panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %T is not an error", r)
		var ce *effect.ConstructionError
		require.True(t, errors.As(err, &ce), "panic %v is not a ConstructionError", err)
		require.Equal(t, builder, ce.Builder)
	}()
	fn()
}

// counted wraps a value effect and counts its runs.
func counted[T any](n *atomic.Int64, v T) effect.Effect[T] {
	return effect.Lazy(func() T {
		n.Add(1)
		return v
	})
}

func bools(vs []bool) []effect.Effect[bool] {
	out := make([]effect.Effect[bool], len(vs))
	for i, v := range vs {
		out[i] = effect.Succeed(v)
	}
	return out
}
