package policy

import (
	"fmt"
	"time"
)

// RetryStatus is an immutable snapshot of retry progress.
//
// Iteration is 0 before any retry has happened. PreviousDelay is the delay that
// preceded the current iteration and CumulativeDelay is the sum of all delays so far.
type RetryStatus struct {
	Iteration       int
	CumulativeDelay time.Duration
	PreviousDelay   time.Duration

	// handovers records which FollowedBy combinators already switched to their
	// second policy. It is shared, never mutated.
	handovers *handover
}

type handover struct {
	tag  *followTag
	next *handover
}

type followTag struct{ _ byte }

// Initial returns the status before the first retry.
func Initial() RetryStatus { return RetryStatus{} }

func (s RetryStatus) String() string {
	return fmt.Sprintf("RetryStatus{iteration=%d, cumulativeDelay=%v, previousDelay=%v}",
		s.Iteration, s.CumulativeDelay, s.PreviousDelay)
}

// advance returns the status reached by waiting d.
func (s RetryStatus) advance(d time.Duration) RetryStatus {
	if d < 0 {
		d = 0
	}
	return RetryStatus{
		Iteration:       s.Iteration + 1,
		CumulativeDelay: saturatingAdd(s.CumulativeDelay, d),
		PreviousDelay:   d,
		handovers:       s.handovers,
	}
}

func (s RetryStatus) handedOver(tag *followTag) bool {
	for h := s.handovers; h != nil; h = h.next {
		if h.tag == tag {
			return true
		}
	}
	return false
}

// restart returns a zeroed status that remembers tag as handed over.
func (s RetryStatus) restart(tag *followTag) RetryStatus {
	return RetryStatus{handovers: &handover{tag: tag, next: s.handovers}}
}

// Decision is the result of consulting a Policy.
type Decision struct {
	Continue bool
	Delay    time.Duration
	Next     RetryStatus
}

// Stop returns a decision that ends retrying.
func Stop() Decision { return Decision{} }

// ContinueAfter returns a decision to wait d and then continue from s.
func ContinueAfter(s RetryStatus, d time.Duration) Decision {
	next := s.advance(d)
	return Decision{Continue: true, Delay: next.PreviousDelay, Next: next}
}

const maxDuration = time.Duration(1<<63 - 1)

func saturatingAdd(a, b time.Duration) time.Duration {
	if b > 0 && a > maxDuration-b {
		return maxDuration
	}
	return a + b
}
