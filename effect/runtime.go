package effect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/effex/budget"
	"github.com/aponysus/effex/classify"
	"github.com/aponysus/effex/observe"
	"github.com/aponysus/effex/sched"
)

const tracerName = "github.com/aponysus/effex"

// FailureMode controls behavior when a dependency named by a retry (a
// classifier or budget) is missing from the runtime registries.
type FailureMode int

const (
	FailureModeUnknown FailureMode = iota
	FailureDeny
	FailureAllow
	FailureFallback
)

func (m FailureMode) String() string {
	switch m {
	case FailureDeny:
		return "deny"
	case FailureAllow:
		return "allow"
	case FailureFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

func normalizeFailureMode(mode, defaultMode FailureMode) FailureMode {
	switch mode {
	case FailureDeny, FailureAllow, FailureFallback:
		return mode
	default:
		return defaultMode
	}
}

// Runtime carries what effects need while they run: the worker pool, the
// retry collaborators and the instrumentation sinks. Effects find it through
// their context (see WithRuntime); without one they use Default().
type Runtime struct {
	pool                  *sched.Pool
	observer              observe.Observer
	logger                *slog.Logger
	tracer                trace.Tracer
	clock                 func() time.Time
	sleep                 func(context.Context, time.Duration) error
	classifiers           *classify.Registry
	defaultClassifier     classify.Classifier
	budgets               *budget.Registry
	missingClassifierMode FailureMode
	missingBudgetMode     FailureMode
}

// Options configures a Runtime.
type Options struct {
	Pool                  *sched.Pool
	Observer              observe.Observer
	Logger                *slog.Logger
	Tracer                trace.Tracer
	Clock                 func() time.Time
	Sleep                 func(context.Context, time.Duration) error
	Classifiers           *classify.Registry
	DefaultClassifier     classify.Classifier
	Budgets               *budget.Registry
	MissingClassifierMode FailureMode
	MissingBudgetMode     FailureMode
}

// Option configures a Runtime.
type Option func(*Options)

// NewRuntime creates a Runtime with default options.
func NewRuntime(opts ...Option) *Runtime {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return NewRuntimeFromOptions(o)
}

// NewRuntimeFromOptions creates a Runtime from a config struct.
func NewRuntimeFromOptions(opts Options) *Runtime {
	rt := &Runtime{
		pool:                  opts.Pool,
		observer:              opts.Observer,
		logger:                opts.Logger,
		tracer:                opts.Tracer,
		clock:                 opts.Clock,
		sleep:                 opts.Sleep,
		classifiers:           opts.Classifiers,
		defaultClassifier:     opts.DefaultClassifier,
		budgets:               opts.Budgets,
		missingClassifierMode: normalizeFailureMode(opts.MissingClassifierMode, FailureFallback),
		missingBudgetMode:     normalizeFailureMode(opts.MissingBudgetMode, FailureDeny),
	}

	if rt.pool == nil {
		rt.pool = sched.Default()
	}
	if rt.observer == nil {
		rt.observer = observe.NoopObserver{}
	}
	if rt.logger == nil {
		rt.logger = slog.Default()
	}
	if rt.tracer == nil {
		rt.tracer = otel.Tracer(tracerName)
	}
	if rt.clock == nil {
		rt.clock = time.Now
	}
	if rt.sleep == nil {
		rt.sleep = sleepWithContext
	}
	if rt.classifiers == nil {
		rt.classifiers = classify.NewRegistry()
		classify.RegisterBuiltins(rt.classifiers)
	}
	if rt.defaultClassifier == nil {
		rt.defaultClassifier = classify.AlwaysRetryOnError{}
	}
	if rt.budgets == nil {
		rt.budgets = budget.NewRegistry()
	}
	return rt
}

// WithPool sets the worker pool effects run on.
func WithPool(p *sched.Pool) Option {
	return func(o *Options) { o.Pool = p }
}

// WithObserver sets the observer for retried, repeated and debugged runs.
func WithObserver(obs observe.Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithTracer sets the tracer used by Debug.
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// WithClock sets the clock function.
func WithClock(f func() time.Time) Option {
	return func(o *Options) { o.Clock = f }
}

// WithSleep replaces the function that waits between attempts. It must
// return ctx.Err() when ctx is done first.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *Options) { o.Sleep = f }
}

// WithClassifiers sets the classifier registry.
func WithClassifiers(r *classify.Registry) Option {
	return func(o *Options) { o.Classifiers = r }
}

// WithDefaultClassifier sets the classifier used when a retry names none.
func WithDefaultClassifier(c classify.Classifier) Option {
	return func(o *Options) { o.DefaultClassifier = c }
}

// WithBudgetRegistry sets the budget registry.
func WithBudgetRegistry(r *budget.Registry) Option {
	return func(o *Options) { o.Budgets = r }
}

// WithMissingClassifierMode sets the mode for retries naming an unknown classifier.
func WithMissingClassifierMode(mode FailureMode) Option {
	return func(o *Options) { o.MissingClassifierMode = mode }
}

// WithMissingBudgetMode sets the mode for retries naming an unknown budget.
func WithMissingBudgetMode(mode FailureMode) Option {
	return func(o *Options) { o.MissingBudgetMode = mode }
}

// Pool returns the runtime's worker pool.
func (rt *Runtime) Pool() *sched.Pool { return rt.pool }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

type runtimeKey struct{}

// WithRuntime returns a context whose effects run with rt.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if rt == nil {
		return ctx
	}
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the runtime attached to ctx, or Default().
func RuntimeFrom(ctx context.Context) *Runtime {
	if ctx != nil {
		if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok && rt != nil {
			return rt
		}
	}
	return Default()
}

var (
	globalRuntime *Runtime
	globalOnce    sync.Once
)

// Default returns the shared, lazily initialized runtime. It uses
// NewRuntime() on the default pool unless SetDefault ran first.
func Default() *Runtime {
	globalOnce.Do(func() {
		if globalRuntime == nil {
			globalRuntime = NewRuntime()
		}
	})
	return globalRuntime
}

// SetDefault configures the default runtime. It must be called before
// Default() is used (e.g. at startup). Later calls log a warning and do
// nothing.
func SetDefault(rt *Runtime) {
	if rt == nil {
		return
	}
	applied := false
	globalOnce.Do(func() {
		globalRuntime = rt
		applied = true
	})
	if !applied {
		slog.Warn("effex: SetDefault called after default runtime already initialized; ignoring")
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
