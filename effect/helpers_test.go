package effect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aponysus/effex/sched"
)

// sleepRecorder replaces real waits between attempts.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// testContext returns a context carrying a runtime on a private pool, with
// waits recorded instead of slept.
func testContext(t *testing.T, opts ...Option) (context.Context, *Runtime, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	base := []Option{WithPool(sched.New(4)), WithSleep(rec.sleep)}
	rt := NewRuntime(append(base, opts...)...)
	return WithRuntime(context.Background(), rt), rt, rec
}

func requireConstructionError(t *testing.T, builder string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a construction panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %T is not an error", r)
		var ce *ConstructionError
		require.True(t, errors.As(err, &ce), "panic %v is not a ConstructionError", err)
		require.Equal(t, builder, ce.Builder)
	}()
	fn()
}

// flaky fails until it has been called n times.
type flaky struct {
	mu    sync.Mutex
	calls int
	n     int
	errs  []error
}

func (f *flaky) effect() Effect[int] {
	return TaskCtx(func(context.Context) (int, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.calls < f.n {
			err := errors.New("transient")
			f.errs = append(f.errs, err)
			return 0, err
		}
		return f.calls, nil
	})
}

func (f *flaky) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
