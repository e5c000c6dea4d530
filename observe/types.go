package observe

import (
	"context"
	"time"

	"github.com/aponysus/effex/classify"
)

// Mode names what a timeline was recorded for.
type Mode string

const (
	ModeRetry  Mode = "retry"
	ModeRepeat Mode = "repeat"
	ModeDebug  Mode = "debug"
)

// AttemptRecord describes a single run of an effect body.
type AttemptRecord struct {
	// Attempt is 0 for the first run and n for the n-th re-run.
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	Outcome classify.Outcome
	Err     error

	// Delay waited before this attempt.
	Delay time.Duration
	// CumulativeDelay waited before this attempt, across all previous attempts.
	CumulativeDelay time.Duration

	BudgetAllowed bool
	BudgetReason  string
}

// Timeline is the structured record of one retried, repeated or debugged
// effect run and all of its attempts.
type Timeline struct {
	Label string
	RunID string
	Mode  Mode
	Start time.Time
	End   time.Time

	// Attributes holds run-level metadata (classifier fallbacks, budget names, stop reasons).
	Attributes map[string]string

	Attempts []AttemptRecord
	FinalErr error
}

// Observer receives lifecycle callbacks for a single run.
type Observer interface {
	OnStart(ctx context.Context, label string, mode Mode)
	OnAttempt(ctx context.Context, label string, rec AttemptRecord)
	OnSuccess(ctx context.Context, label string, tl Timeline)
	OnFailure(ctx context.Context, label string, tl Timeline)
}
