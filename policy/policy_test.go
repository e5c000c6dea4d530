package policy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func delays(statuses []RetryStatus) []time.Duration {
	out := make([]time.Duration, 0, len(statuses))
	for _, s := range statuses[1:] {
		out = append(out, s.PreviousDelay)
	}
	return out
}

func assertDelays(t *testing.T, got []RetryStatus, want ...time.Duration) {
	t.Helper()
	if len(got) != len(want)+1 {
		t.Fatalf("len=%d, want %d: %v", len(got), len(want)+1, got)
	}
	for i, d := range delays(got) {
		if d != want[i] {
			t.Fatalf("delay[%d]=%v, want %v (statuses=%v)", i, d, want[i], got)
		}
	}
}

func TestSimulate_StartsFromInitialStatus(t *testing.T) {
	got := ConstantDelay(time.Second).Simulate(3)
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	if got[0].Iteration != 0 || got[0].PreviousDelay != 0 || got[0].CumulativeDelay != 0 {
		t.Fatalf("first status=%v, want initial", got[0])
	}
	for i, s := range got {
		if s.Iteration != i {
			t.Fatalf("status[%d].Iteration=%d", i, s.Iteration)
		}
	}
}

func TestSimulate_NonPositiveCount(t *testing.T) {
	if got := ConstantDelay(time.Second).Simulate(0); got != nil {
		t.Fatalf("Simulate(0)=%v, want nil", got)
	}
	if got := ConstantDelay(time.Second).Simulate(-1); got != nil {
		t.Fatalf("Simulate(-1)=%v, want nil", got)
	}
}

func TestNilPolicyStops(t *testing.T) {
	var p Policy
	if d := p.Decide(Initial()); d.Continue {
		t.Fatalf("nil policy continued: %+v", d)
	}
	if got := p.Simulate(5); len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
}

func TestConstantDelay(t *testing.T) {
	assertDelays(t, ConstantDelay(5*time.Millisecond).Simulate(4),
		5*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond)
}

func TestIncrementalDelay(t *testing.T) {
	got := IncrementalDelay(10 * time.Millisecond).Simulate(5)
	assertDelays(t, got, 10*time.Millisecond, 20*time.Millisecond, 30*time.Millisecond, 40*time.Millisecond)
	if last := got[len(got)-1]; last.CumulativeDelay != 100*time.Millisecond {
		t.Fatalf("cumulative=%v, want 100ms", last.CumulativeDelay)
	}
}

func TestExponentialBackoff(t *testing.T) {
	assertDelays(t, ExponentialBackoff(10*time.Millisecond).Simulate(5),
		10*time.Millisecond, 20*time.Millisecond, 40*time.Millisecond, 80*time.Millisecond)
}

func TestExponentialBackoff_Saturates(t *testing.T) {
	for i, s := range ExponentialBackoff(time.Hour).Simulate(100) {
		if s.PreviousDelay < 0 || s.CumulativeDelay < 0 {
			t.Fatalf("status[%d] overflowed: %v", i, s)
		}
	}
}

func TestIncrementalDelay_LimitRetriesByCumulativeDelay(t *testing.T) {
	got := IncrementalDelay(10 * time.Millisecond).
		LimitRetriesByCumulativeDelay(120 * time.Millisecond).
		Simulate(20)

	if len(got) != 5 {
		t.Fatalf("len=%d, want 5: %v", len(got), got)
	}
	last := got[4]
	if last.Iteration != 4 || last.CumulativeDelay != 100*time.Millisecond || last.PreviousDelay != 40*time.Millisecond {
		t.Fatalf("last=%v, want iteration=4 cumulative=100ms previous=40ms", last)
	}
}

func TestIncrementalDelay_CapDelay(t *testing.T) {
	got := IncrementalDelay(10 * time.Millisecond).CapDelay(100 * time.Millisecond).Simulate(20)
	if len(got) != 20 {
		t.Fatalf("len=%d, want 20", len(got))
	}
	for i, s := range got {
		if s.PreviousDelay > 100*time.Millisecond {
			t.Fatalf("status[%d].PreviousDelay=%v exceeds cap", i, s.PreviousDelay)
		}
	}
	// 10+20+...+100 then nine more capped retries.
	if last := got[19]; last.CumulativeDelay != 1450*time.Millisecond {
		t.Fatalf("cumulative=%v, want 1.45s", last.CumulativeDelay)
	}
}

func TestLimitRetries(t *testing.T) {
	got := ConstantDelay(time.Millisecond).LimitRetries(3).Simulate(10)
	if len(got) != 4 {
		t.Fatalf("len=%d, want 4", len(got))
	}
	if got := ConstantDelay(time.Millisecond).LimitRetries(0).Simulate(10); len(got) != 1 {
		t.Fatalf("LimitRetries(0) len=%d, want 1", len(got))
	}
}

func TestLimitRetriesByDelay(t *testing.T) {
	got := ExponentialBackoff(10 * time.Millisecond).LimitRetriesByDelay(50 * time.Millisecond).Simulate(10)
	assertDelays(t, got, 10*time.Millisecond, 20*time.Millisecond, 40*time.Millisecond)
}

func TestAppend_UsesLongerDelay(t *testing.T) {
	got := ConstantDelay(10 * time.Millisecond).Append(IncrementalDelay(5 * time.Millisecond)).Simulate(5)
	assertDelays(t, got, 10*time.Millisecond, 10*time.Millisecond, 15*time.Millisecond, 20*time.Millisecond)
	if last := got[4]; last.CumulativeDelay != 55*time.Millisecond {
		t.Fatalf("cumulative=%v, want 55ms", last.CumulativeDelay)
	}
}

func TestAppend_StopsWhenEitherStops(t *testing.T) {
	a := ConstantDelay(10 * time.Millisecond).Append(ConstantDelay(time.Millisecond).LimitRetries(2))
	if got := a.Simulate(10); len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	b := ConstantDelay(time.Millisecond).LimitRetries(2).Append(ConstantDelay(10 * time.Millisecond))
	if got := b.Simulate(10); len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
}

func TestFollowedBy_RestartsCounters(t *testing.T) {
	p := ConstantDelay(10 * time.Millisecond).LimitRetries(2).
		FollowedBy(ConstantDelay(50 * time.Millisecond).LimitRetries(2))

	got := p.Simulate(10)
	want := []RetryStatus{
		{},
		{Iteration: 1, CumulativeDelay: 10 * time.Millisecond, PreviousDelay: 10 * time.Millisecond},
		{Iteration: 2, CumulativeDelay: 20 * time.Millisecond, PreviousDelay: 10 * time.Millisecond},
		{Iteration: 1, CumulativeDelay: 50 * time.Millisecond, PreviousDelay: 50 * time.Millisecond},
		{Iteration: 2, CumulativeDelay: 100 * time.Millisecond, PreviousDelay: 50 * time.Millisecond},
	}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Iteration != want[i].Iteration ||
			got[i].CumulativeDelay != want[i].CumulativeDelay ||
			got[i].PreviousDelay != want[i].PreviousDelay {
			t.Fatalf("status[%d]=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestFollowedBy_Nested(t *testing.T) {
	p := ConstantDelay(time.Millisecond).LimitRetries(1).
		FollowedBy(ConstantDelay(2 * time.Millisecond).LimitRetries(1)).
		FollowedBy(ConstantDelay(3 * time.Millisecond).LimitRetries(1))

	assertDelays(t, p.Simulate(10), time.Millisecond, 2*time.Millisecond, 3*time.Millisecond)
}

func TestFollowedBy_IsReplayable(t *testing.T) {
	p := ConstantDelay(time.Millisecond).LimitRetries(1).FollowedBy(ConstantDelay(time.Second).LimitRetries(1))
	first := p.Simulate(10)
	second := p.Simulate(10)
	if len(first) != len(second) {
		t.Fatalf("replay lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].String() != second[i].String() {
			t.Fatalf("replay differs at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestCombinatorsDoNotMutateReceiver(t *testing.T) {
	base := ConstantDelay(time.Millisecond)
	_ = base.LimitRetries(1)
	_ = base.CapDelay(0)
	if got := base.Simulate(5); len(got) != 5 {
		t.Fatalf("base policy changed: len=%d", len(got))
	}
}

func TestFullJitterBounds(t *testing.T) {
	base, ceiling := 10*time.Millisecond, 50*time.Millisecond
	for i, s := range FullJitter(base, ceiling).Simulate(30)[1:] {
		upper := minDuration(ceiling, expDelay(base, i+1))
		if s.PreviousDelay < 0 || s.PreviousDelay > upper {
			t.Fatalf("retry %d delay=%v outside [0, %v]", i+1, s.PreviousDelay, upper)
		}
	}
}

func TestEqualJitterBounds(t *testing.T) {
	base, ceiling := 10*time.Millisecond, 80*time.Millisecond
	for i, s := range EqualJitter(base, ceiling).Simulate(30)[1:] {
		upper := minDuration(ceiling, expDelay(base, i+1))
		if s.PreviousDelay < upper/2 || s.PreviousDelay > upper {
			t.Fatalf("retry %d delay=%v outside [%v, %v]", i+1, s.PreviousDelay, upper/2, upper)
		}
	}
}

func TestDecorrelatedJitterBounds(t *testing.T) {
	base, ceiling := 10*time.Millisecond, 200*time.Millisecond
	got := DecorrelatedJitter(base, ceiling).Simulate(50)
	for i := 1; i < len(got); i++ {
		d := got[i].PreviousDelay
		prev := got[i-1].PreviousDelay
		if prev < base {
			prev = base
		}
		if d < base || d > ceiling || d > 3*prev {
			t.Fatalf("retry %d delay=%v outside [%v, min(%v, %v)]", i, d, base, ceiling, 3*prev)
		}
	}
}

func TestRandBetween(t *testing.T) {
	if got := randBetween(5, 5); got != 5 {
		t.Fatalf("randBetween(5,5)=%v", got)
	}
	if got := randBetween(5, 1); got != 5 {
		t.Fatalf("randBetween(5,1)=%v", got)
	}
	for range 100 {
		if got := randBetween(1, 3); got < 1 || got > 3 {
			t.Fatalf("randBetween(1,3)=%v", got)
		}
	}
}

func TestCapDelayNeverExceedsCap_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("CapDelay bounds every delay", prop.ForAll(
		func(base, ceiling int64, n int) bool {
			p := ExponentialBackoff(time.Duration(base)).CapDelay(time.Duration(ceiling))
			got := p.Simulate(n)
			if len(got) != n {
				return false
			}
			for _, s := range got {
				if s.PreviousDelay > time.Duration(ceiling) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, int64(time.Second)),
		gen.Int64Range(1, int64(time.Second)),
		gen.IntRange(1, 80),
	))

	properties.Property("cumulative delay is the sum of delays", prop.ForAll(
		func(base int64, n int) bool {
			got := IncrementalDelay(time.Duration(base)).Simulate(n)
			var sum time.Duration
			for _, s := range got {
				sum += s.PreviousDelay
				if s.CumulativeDelay != sum {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, int64(time.Millisecond)),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
