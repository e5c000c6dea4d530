package effect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/effex/sched"
)

func TestRun_NilEffect(t *testing.T) {
	ctx, _, _ := testContext(t)
	var e Effect[int]
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, ErrNilEffect)

	out := e.Outcome(ctx)
	assert.True(t, out.IsFailure())
	_, err = e.Start(ctx).Await(ctx)
	assert.ErrorIs(t, err, ErrNilEffect)
}

func TestMustRun_PanicsWithFailure(t *testing.T) {
	ctx, _, _ := testContext(t)
	boom := errors.New("boom")
	assert.PanicsWithError(t, "boom", func() { Fail[int](boom).MustRun(ctx) })
	assert.Equal(t, 3, Succeed(3).MustRun(ctx))
}

func TestRun_AcquireFailsWhenContextDone(t *testing.T) {
	pool := sched.New(1)
	ctx := WithRuntime(context.Background(), NewRuntime(WithPool(pool)))

	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) {
			close(held)
			<-hold
		})
	}()
	<-held
	defer close(hold)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := Succeed(1).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartAndAwait(t *testing.T) {
	ctx, _, _ := testContext(t)
	release := make(chan struct{})
	f := Managed(func() int {
		<-release
		return 8
	}).Start(ctx)

	_, ok := f.Outcome()
	assert.False(t, ok, "future is pending until the effect finishes")

	close(release)
	v, err := f.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, v)

	out, ok := f.Outcome()
	require.True(t, ok)
	assert.Equal(t, 8, out.Value())
	select {
	case <-f.Done():
	default:
		t.Fatal("Done must be closed after completion")
	}
}

func TestStart_PanicBecomesFailure(t *testing.T) {
	ctx, _, _ := testContext(t)
	f := Lazy(func() int { panic("started badly") }).Start(ctx)
	_, err := f.Await(ctx)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "start", pe.Component)
}

func TestAwait_ContextDone(t *testing.T) {
	ctx, _, _ := testContext(t)
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwait_InsideEffectDoesNotPinSlot(t *testing.T) {
	pool := sched.New(1)
	ctx := WithRuntime(context.Background(), NewRuntime(WithPool(pool)))

	outer := TaskCtx(func(ctx context.Context) (int, error) {
		inner := Succeed(4).Start(ctx)
		return inner.Await(ctx)
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := outer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestRuntimeFrom_FallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), RuntimeFrom(context.Background()))

	rt := NewRuntime(WithPool(sched.New(1)))
	assert.Same(t, rt, RuntimeFrom(WithRuntime(context.Background(), rt)))
	assert.Same(t, Default(), RuntimeFrom(WithRuntime(context.Background(), nil)))
}

func TestFailureModeString(t *testing.T) {
	cases := map[FailureMode]string{
		FailureModeUnknown: "unknown",
		FailureDeny:        "deny",
		FailureAllow:       "allow",
		FailureFallback:    "fallback",
	}
	for mode, want := range cases {
		assert.Equal(t, want, mode.String())
	}
}
