package policy

import (
	"math/rand/v2"
	"time"
)

// Policy decides whether and after which delay to retry (or repeat) given the
// current status.
//
// Policies are values: every combinator returns a new Policy and none captures
// mutable state, so a Policy can be shared between goroutines and replayed with
// Simulate. The jitter policies draw from math/rand/v2 and are therefore the only
// policies whose replays differ.
//
// A nil Policy always stops.
type Policy func(s RetryStatus) Decision

// Decide consults p for status s.
func (p Policy) Decide(s RetryStatus) Decision {
	if p == nil {
		return Stop()
	}
	return p(s)
}

func delayPolicy(delay func(s RetryStatus) time.Duration) Policy {
	return func(s RetryStatus) Decision {
		return ContinueAfter(s, delay(s))
	}
}

// ConstantDelay waits d before every retry.
func ConstantDelay(d time.Duration) Policy {
	return delayPolicy(func(RetryStatus) time.Duration { return d })
}

// IncrementalDelay waits base*n before retry n.
func IncrementalDelay(base time.Duration) Policy {
	return delayPolicy(func(s RetryStatus) time.Duration {
		return mulDuration(base, int64(s.Iteration+1))
	})
}

// ExponentialBackoff waits base*2^(n-1) before retry n.
func ExponentialBackoff(base time.Duration) Policy {
	return delayPolicy(func(s RetryStatus) time.Duration {
		return expDelay(base, s.Iteration+1)
	})
}

// FullJitter waits a uniformly random delay in [0, min(ceiling, base*2^(n-1))].
func FullJitter(base, ceiling time.Duration) Policy {
	return delayPolicy(func(s RetryStatus) time.Duration {
		return randBetween(0, minDuration(ceiling, expDelay(base, s.Iteration+1)))
	})
}

// EqualJitter keeps half of the capped exponential delay and randomizes the other half.
func EqualJitter(base, ceiling time.Duration) Policy {
	return delayPolicy(func(s RetryStatus) time.Duration {
		temp := minDuration(ceiling, expDelay(base, s.Iteration+1))
		half := temp / 2
		return half + randBetween(0, temp-half)
	})
}

// DecorrelatedJitter waits a uniformly random delay in [base, previousDelay*3],
// capped at ceiling. The first retry uses base as the previous delay.
func DecorrelatedJitter(base, ceiling time.Duration) Policy {
	return delayPolicy(func(s RetryStatus) time.Duration {
		prev := s.PreviousDelay
		if prev < base {
			prev = base
		}
		return minDuration(ceiling, randBetween(base, mulDuration(prev, 3)))
	})
}

// LimitRetries stops once n retries have happened.
func (p Policy) LimitRetries(n int) Policy {
	return func(s RetryStatus) Decision {
		if s.Iteration >= n {
			return Stop()
		}
		return p.Decide(s)
	}
}

// LimitRetriesByDelay stops once the next delay would exceed max.
func (p Policy) LimitRetriesByDelay(max time.Duration) Policy {
	return func(s RetryStatus) Decision {
		d := p.Decide(s)
		if d.Continue && d.Delay > max {
			return Stop()
		}
		return d
	}
}

// LimitRetriesByCumulativeDelay stops once the cumulative delay would exceed max.
func (p Policy) LimitRetriesByCumulativeDelay(max time.Duration) Policy {
	return func(s RetryStatus) Decision {
		d := p.Decide(s)
		if d.Continue && d.Next.CumulativeDelay > max {
			return Stop()
		}
		return d
	}
}

// CapDelay clamps every delay to max without stopping.
func (p Policy) CapDelay(max time.Duration) Policy {
	return func(s RetryStatus) Decision {
		d := p.Decide(s)
		if d.Continue && d.Delay > max {
			return withDelay(d, max)
		}
		return d
	}
}

// Append combines p and other: both must continue, and the longer of the two
// delays is used.
func (p Policy) Append(other Policy) Policy {
	return func(s RetryStatus) Decision {
		a := p.Decide(s)
		if !a.Continue {
			return Stop()
		}
		b := other.Decide(s)
		if !b.Continue {
			return Stop()
		}
		if b.Delay > a.Delay {
			return withDelay(a, b.Delay)
		}
		return a
	}
}

// FollowedBy runs p until it stops and then hands over to other. other sees its
// own counters, starting again from the initial status.
func (p Policy) FollowedBy(other Policy) Policy {
	tag := &followTag{}
	return func(s RetryStatus) Decision {
		if s.handedOver(tag) {
			return other.Decide(s)
		}
		if d := p.Decide(s); d.Continue {
			return d
		}
		return other.Decide(s.restart(tag))
	}
}

// Simulate replays p from the initial status without waiting and returns at
// most n statuses: the initial one followed by every status p continued to.
func (p Policy) Simulate(n int) []RetryStatus {
	if n <= 0 {
		return nil
	}
	out := make([]RetryStatus, 0, n)
	s := Initial()
	for len(out) < n {
		out = append(out, s)
		d := p.Decide(s)
		if !d.Continue {
			break
		}
		s = d.Next
	}
	return out
}

// withDelay rewrites the delay of a continuing decision, keeping its iteration.
func withDelay(d Decision, delay time.Duration) Decision {
	if delay < 0 {
		delay = 0
	}
	next := d.Next
	next.CumulativeDelay = saturatingAdd(next.CumulativeDelay-next.PreviousDelay, delay)
	next.PreviousDelay = delay
	return Decision{Continue: true, Delay: delay, Next: next}
}

func mulDuration(d time.Duration, k int64) time.Duration {
	if d <= 0 || k <= 0 {
		return 0
	}
	if d > maxDuration/time.Duration(k) {
		return maxDuration
	}
	return d * time.Duration(k)
}

func expDelay(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n-1 >= 62 {
		return mulDuration(base, 1<<62)
	}
	return mulDuration(base, int64(1)<<(n-1))
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// randBetween returns a uniformly random duration in [lo, hi].
func randBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64(hi - lo)
	if span == int64(maxDuration) {
		return lo + time.Duration(rand.Int64N(span))
	}
	return lo + time.Duration(rand.Int64N(span+1))
}
