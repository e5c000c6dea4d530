package classify

// OutcomeKind describes what a classifier decided about a failure.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeRetryable
	OutcomeNonRetryable
	OutcomeAbort
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeNonRetryable:
		return "non_retryable"
	case OutcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Outcome describes the classification of an attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string

	// Attributes carries classifier-specific detail for observers.
	Attributes map[string]string
}

// Retryable reports whether a retry policy should be consulted.
func (o Outcome) Retryable() bool { return o.Kind == OutcomeRetryable }

// Classifier decides whether a failed attempt may be retried. A nil error
// classifies as success.
type Classifier interface {
	Classify(err error) Outcome
}

// Func adapts a plain function to Classifier.
type Func func(err error) Outcome

func (f Func) Classify(err error) Outcome { return f(err) }

// Normalize fills a missing reason and turns unknown kinds into aborts, so
// callers never retry on an outcome nobody decided.
func Normalize(out Outcome) Outcome {
	if out.Kind == OutcomeUnknown {
		if out.Reason == "" {
			out.Reason = "unknown_outcome"
		}
		out.Kind = OutcomeAbort
	}
	if out.Reason == "" {
		switch out.Kind {
		case OutcomeSuccess:
			out.Reason = "success"
		case OutcomeRetryable:
			out.Reason = "retryable_error"
		case OutcomeNonRetryable:
			out.Reason = "non_retryable_error"
		default:
			out.Reason = "abort"
		}
	}
	return out
}
