package effect

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aponysus/effex/budget"
	"github.com/aponysus/effex/classify"
	"github.com/aponysus/effex/observe"
	"github.com/aponysus/effex/policy"
)

const defaultLabel = "effect"

// RetryOptions configures Retry, RetryIf and Repeat.
type RetryOptions struct {
	// Label names the run in timelines, logs and metrics.
	Label string
	// RetryIf gates retries: failures it rejects are returned at once.
	RetryIf func(error) bool
	// Classifier decides which failures are retryable. It takes precedence
	// over ClassifierName.
	Classifier classify.Classifier
	// ClassifierName is resolved through the runtime classifier registry.
	ClassifierName string
	// Budget names a budget in the runtime registry consulted before every
	// re-run.
	Budget string
}

// RetryOption configures Retry, RetryIf and Repeat.
type RetryOption func(*RetryOptions)

// WithLabel names the run.
func WithLabel(label string) RetryOption {
	return func(o *RetryOptions) { o.Label = label }
}

// WithRetryIf only retries failures for which pred returns true.
func WithRetryIf(pred func(error) bool) RetryOption {
	return func(o *RetryOptions) { o.RetryIf = pred }
}

// WithClassifier sets the classifier deciding which failures are retryable.
func WithClassifier(c classify.Classifier) RetryOption {
	return func(o *RetryOptions) { o.Classifier = c }
}

// WithClassifierName selects a classifier from the runtime registry.
func WithClassifierName(name string) RetryOption {
	return func(o *RetryOptions) { o.ClassifierName = name }
}

// WithBudget gates re-runs with the named budget from the runtime registry.
func WithBudget(name string) RetryOption {
	return func(o *RetryOptions) { o.Budget = name }
}

func retryOptionsFrom(opts []RetryOption) RetryOptions {
	var o RetryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.Label = strings.TrimSpace(o.Label)
	if o.Label == "" {
		o.Label = defaultLabel
	}
	o.ClassifierName = strings.TrimSpace(o.ClassifierName)
	o.Budget = strings.TrimSpace(o.Budget)
	return o
}

// Retry re-runs e after a retryable failure for as long as p continues,
// waiting p's delay in between. Once p stops, the last failure is returned
// unchanged. By default every failure except context cancellation and
// classify.Permanent errors is retryable.
//
// p sees RetryStatus{Iteration: 0} after the first failure.
func (e Effect[T]) Retry(p policy.Policy, opts ...RetryOption) Effect[T] {
	if e == nil {
		Invalid("retry", "nil effect")
	}
	if p == nil {
		Invalid("retry", "nil policy")
	}
	o := retryOptionsFrom(opts)
	return func(ctx context.Context) (T, error) {
		rt := RuntimeFrom(ctx)
		classifier, fellBack, err := rt.resolveClassifier(o)
		if err != nil {
			var zero T
			return zero, err
		}
		l := &loop[T]{
			rt:    rt,
			body:  e,
			pol:   p,
			opts:  o,
			mode:  observe.ModeRetry,
			kind:  budget.KindRetry,
			judge: retryJudge[T](o.RetryIf, classifier),
		}
		if fellBack {
			l.attrs = map[string]string{
				"classifier_name":     o.ClassifierName,
				"classifier_fallback": "default",
			}
		}
		return l.run(ctx)
	}
}

// RetryIf is Retry limited to failures accepted by pred.
func (e Effect[T]) RetryIf(pred func(error) bool, p policy.Policy, opts ...RetryOption) Effect[T] {
	if pred == nil {
		Invalid("retry", "nil predicate")
	}
	return e.Retry(p, append([]RetryOption{WithRetryIf(pred)}, opts...)...)
}

// Repeat re-runs e after a success while pred holds for the value and p
// continues, waiting p's delay in between, and returns the last success. A
// failure is returned at once.
func (e Effect[T]) Repeat(pred func(T) bool, p policy.Policy, opts ...RetryOption) Effect[T] {
	if e == nil {
		Invalid("repeat", "nil effect")
	}
	if pred == nil {
		Invalid("repeat", "nil predicate")
	}
	if p == nil {
		Invalid("repeat", "nil policy")
	}
	o := retryOptionsFrom(opts)
	return func(ctx context.Context) (T, error) {
		l := &loop[T]{
			rt:    RuntimeFrom(ctx),
			body:  e,
			pol:   p,
			opts:  o,
			mode:  observe.ModeRepeat,
			kind:  budget.KindRepeat,
			judge: repeatJudge(pred),
		}
		return l.run(ctx)
	}
}

func retryJudge[T any](pred func(error) bool, c classify.Classifier) func(T, error) classify.Outcome {
	return func(_ T, err error) classify.Outcome {
		if err == nil {
			return classify.Outcome{Kind: classify.OutcomeSuccess, Reason: "success"}
		}
		if pred != nil && !pred(err) {
			return classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "predicate_rejected"}
		}
		return c.Classify(err)
	}
}

func repeatJudge[T any](pred func(T) bool) func(T, error) classify.Outcome {
	return func(v T, err error) classify.Outcome {
		if err != nil {
			return classify.Outcome{Kind: classify.OutcomeAbort, Reason: "failure"}
		}
		if pred(v) {
			// Retryable here means: ask the policy for another run.
			return classify.Outcome{Kind: classify.OutcomeRetryable, Reason: "repeat"}
		}
		return classify.Outcome{Kind: classify.OutcomeSuccess, Reason: "success"}
	}
}

func (rt *Runtime) resolveClassifier(o RetryOptions) (classify.Classifier, bool, error) {
	switch {
	case o.Classifier != nil:
		return o.Classifier, false, nil
	case o.ClassifierName != "":
		if c, ok := rt.classifiers.Get(o.ClassifierName); ok {
			return c, false, nil
		}
		if rt.missingClassifierMode == FailureDeny {
			return nil, false, &NoClassifierError{Name: o.ClassifierName, Known: rt.classifiers.Names()}
		}
		return rt.defaultClassifier, true, nil
	case o.RetryIf != nil:
		// The predicate alone decides.
		return classify.Predicate(func(error) bool { return true }), false, nil
	default:
		return rt.defaultClassifier, false, nil
	}
}

// deniedBudget stands in for a named budget missing from the registry.
type deniedBudget struct{}

func (deniedBudget) AllowAttempt(context.Context, string, int, budget.AttemptKind) budget.Decision {
	return budget.Decision{Allowed: false, Reason: budget.ReasonBudgetNotFound}
}

func (rt *Runtime) resolveBudget(name string) budget.Budget {
	if name == "" {
		return nil
	}
	if b, ok := rt.budgets.Get(name); ok {
		return b
	}
	if rt.missingBudgetMode == FailureDeny {
		return deniedBudget{}
	}
	return nil
}

// loop drives retry and repeat: run, judge, consult the policy, gate with the
// budget, wait, and run again.
type loop[T any] struct {
	rt    *Runtime
	body  Effect[T]
	pol   policy.Policy
	opts  RetryOptions
	mode  observe.Mode
	kind  budget.AttemptKind
	judge func(T, error) classify.Outcome
	attrs map[string]string
}

func (l *loop[T]) run(ctx context.Context) (T, error) {
	rt := l.rt
	label := l.opts.Label
	capture, hasCapture := observe.TimelineCaptureFromContext(ctx)
	record := hasCapture || !observe.IsNoop(rt.observer)

	var tl observe.Timeline
	runID := ""
	if record {
		runID = uuid.NewString()
		tl = observe.Timeline{
			Label:      label,
			RunID:      runID,
			Mode:       l.mode,
			Start:      rt.clock(),
			Attributes: make(map[string]string, len(l.attrs)+1),
		}
		for k, v := range l.attrs {
			tl.Attributes[k] = v
		}
		rt.observer.OnStart(ctx, label, l.mode)
	}
	finish := func(v T, err error, stop string) (T, error) {
		if !record {
			return v, err
		}
		tl.End = rt.clock()
		tl.FinalErr = err
		tl.Attributes["stop_reason"] = stop
		if err == nil {
			rt.observer.OnSuccess(ctx, label, tl)
		} else {
			rt.observer.OnFailure(ctx, label, tl)
		}
		if hasCapture {
			observe.StoreTimelineCapture(capture, &tl)
		}
		return v, err
	}

	bud := rt.resolveBudget(l.opts.Budget)
	status := policy.Initial()
	var (
		delay, waited time.Duration
		decision      = budget.Decision{Allowed: true}
	)

	for attempt := 0; ; attempt++ {
		attemptCtx := observe.WithAttemptInfo(observe.WithoutTimelineCapture(ctx), observe.AttemptInfo{
			Label:   label,
			Mode:    l.mode,
			RunID:   runID,
			Attempt: attempt,
		})

		start := rt.clock()
		v, err := func() (T, error) {
			if decision.Release != nil {
				defer decision.Release()
			}
			return l.body(attemptCtx)
		}()
		out := classify.Normalize(l.judge(v, err))

		if record {
			rec := observe.AttemptRecord{
				Attempt:         attempt,
				StartTime:       start,
				EndTime:         rt.clock(),
				Outcome:         out,
				Err:             err,
				Delay:           delay,
				CumulativeDelay: waited,
				BudgetAllowed:   true,
				BudgetReason:    decision.Reason,
			}
			tl.Attempts = append(tl.Attempts, rec)
			rt.observer.OnAttempt(attemptCtx, label, rec)
		}

		if !out.Retryable() {
			return finish(v, err, out.Reason)
		}

		next := l.pol.Decide(status)
		if !next.Continue {
			return finish(v, err, "policy_exhausted")
		}

		if bud != nil {
			decision = allowAttempt(ctx, bud, label, attempt+1, l.kind)
			if !decision.Allowed {
				if record {
					// The denied re-run never starts; it is recorded with no error.
					now := rt.clock()
					rec := observe.AttemptRecord{
						Attempt:         attempt + 1,
						StartTime:       now,
						EndTime:         now,
						Outcome:         classify.Outcome{Kind: classify.OutcomeAbort, Reason: decision.Reason},
						Delay:           next.Delay,
						CumulativeDelay: waited + next.Delay,
						BudgetAllowed:   false,
						BudgetReason:    decision.Reason,
					}
					tl.Attempts = append(tl.Attempts, rec)
					tl.Attributes["budget"] = l.opts.Budget
					rt.observer.OnAttempt(attemptCtx, label, rec)
				}
				if err == nil {
					return finish(v, nil, decision.Reason)
				}
				return finish(v, &BudgetError{Name: l.opts.Budget, Reason: decision.Reason, Err: err}, decision.Reason)
			}
		}

		var sleepErr error
		Block(ctx, func() { sleepErr = rt.sleep(ctx, next.Delay) })
		if sleepErr != nil {
			if decision.Release != nil {
				decision.Release()
			}
			return finish(v, sleepErr, "context_done")
		}

		delay = next.Delay
		waited += next.Delay
		status = next.Next
	}
}

func allowAttempt(ctx context.Context, b budget.Budget, label string, attempt int, kind budget.AttemptKind) (d budget.Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = budget.Decision{Allowed: false, Reason: budget.ReasonPanicInBudget}
			RuntimeFrom(ctx).logger.ErrorContext(ctx, "effex: budget panicked",
				"label", label,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	return b.AllowAttempt(ctx, label, attempt, kind)
}
