// Package budget gates re-runs of retried and repeated effects so a failing
// dependency cannot trigger a retry storm.
package budget

import "context"

// AttemptKind describes the attempt type being gated.
type AttemptKind int

const (
	KindRetry AttemptKind = iota
	KindRepeat
)

func (k AttemptKind) String() string {
	if k == KindRepeat {
		return "repeat"
	}
	return "retry"
}

// Standard Decision.Reason strings.
const (
	ReasonAllowed        = "allowed"
	ReasonNoBudget       = "no_budget"
	ReasonBudgetNil      = "budget_nil"
	ReasonBudgetNotFound = "budget_not_found"
	ReasonBudgetDenied   = "budget_denied"
	ReasonPanicInBudget  = "panic_in_budget"
)

// Decision is the result of a budget check.
type Decision struct {
	Allowed bool
	Reason  string

	// Release, when non-nil, is called exactly once after an allowed attempt finishes.
	Release func()
}

// Budget is consulted before every re-run (never before the first run).
// attempt is the number of the re-run being requested, starting at 1.
type Budget interface {
	AllowAttempt(ctx context.Context, label string, attempt int, kind AttemptKind) Decision
}
