package classify

import (
	"context"
	"errors"
	"fmt"
)

// Built-in classifier registry names.
const (
	ClassifierAlwaysRetryOnError = "always"
	ClassifierAuto               = "auto"
	ClassifierNever              = "never"
)

// RegisterBuiltins registers core classifiers into reg.
func RegisterBuiltins(reg *Registry) {
	if reg == nil {
		return
	}
	reg.Register(ClassifierAlwaysRetryOnError, AlwaysRetryOnError{})
	reg.Register(ClassifierAuto, AutoClassifier{})
	reg.Register(ClassifierNever, NeverRetry{})
}

// AlwaysRetryOnError classifies nil errors as success and all other errors as
// retryable, except for context cancellation and Permanent errors.
type AlwaysRetryOnError struct{}

func (AlwaysRetryOnError) Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Reason: "success"}
	}
	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: OutcomeAbort, Reason: "context_canceled"}
	}
	if IsPermanent(err) {
		return Outcome{Kind: OutcomeNonRetryable, Reason: "permanent_error"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// A timeout inside the body; the caller's own deadline still ends the wait.
		return Outcome{Kind: OutcomeRetryable, Reason: "context_deadline_exceeded"}
	}
	return Outcome{Kind: OutcomeRetryable, Reason: "retryable_error"}
}

// NeverRetry classifies every failure as non-retryable.
type NeverRetry struct{}

func (NeverRetry) Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Reason: "success"}
	}
	return Outcome{Kind: OutcomeNonRetryable, Reason: "never_retry"}
}

// Predicate turns an error predicate into a classifier: failures for which
// retryIf returns true are retryable, the rest are not.
func Predicate(retryIf func(error) bool) Classifier {
	return Func(func(err error) Outcome {
		if err == nil {
			return Outcome{Kind: OutcomeSuccess, Reason: "success"}
		}
		if retryIf == nil || !retryIf(err) {
			return Outcome{Kind: OutcomeNonRetryable, Reason: "predicate_rejected"}
		}
		return Outcome{Kind: OutcomeRetryable, Reason: "predicate_accepted"}
	})
}

// RetryOn retries only failures matching one of targets (errors.Is).
func RetryOn(targets ...error) Classifier {
	return Predicate(func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	})
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. errors.Is and errors.As still see
// the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
