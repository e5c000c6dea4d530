package classify

import "errors"

// RetryableError lets an error state its own retryability.
type RetryableError interface {
	error
	Retryable() bool
}

// AutoClassifier asks the error itself when it implements RetryableError
// (anywhere in its chain), and otherwise falls back to AlwaysRetryOnError.
type AutoClassifier struct{}

func (AutoClassifier) Classify(err error) Outcome {
	var re RetryableError
	if err != nil && errors.As(err, &re) {
		if re.Retryable() {
			return Outcome{Kind: OutcomeRetryable, Reason: "error_retryable"}
		}
		return Outcome{Kind: OutcomeNonRetryable, Reason: "error_not_retryable"}
	}
	return AlwaysRetryOnError{}.Classify(err)
}
