package observe

import (
	"context"
	"log/slog"
)

// SlogObserver logs lifecycle events to a slog.Logger. Attempts are logged at
// Debug, successes at Info and failures at Warn.
type SlogObserver struct {
	Logger *slog.Logger
}

// NewSlogObserver returns an observer logging to l (slog.Default when nil).
func NewSlogObserver(l *slog.Logger) *SlogObserver {
	return &SlogObserver{Logger: l}
}

func (o *SlogObserver) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *SlogObserver) OnStart(ctx context.Context, label string, mode Mode) {
	o.logger().DebugContext(ctx, "effex: run started",
		slog.String("label", label),
		slog.String("mode", string(mode)),
	)
}

func (o *SlogObserver) OnAttempt(ctx context.Context, label string, rec AttemptRecord) {
	attrs := []any{
		slog.String("label", label),
		slog.Int("attempt", rec.Attempt),
		slog.Duration("delay", rec.Delay),
		slog.Duration("elapsed", rec.EndTime.Sub(rec.StartTime)),
		slog.String("outcome", rec.Outcome.Reason),
	}
	if rec.Err != nil {
		attrs = append(attrs, slog.String("error", rec.Err.Error()))
	}
	if !rec.BudgetAllowed {
		attrs = append(attrs, slog.String("budget", rec.BudgetReason))
	}
	o.logger().DebugContext(ctx, "effex: attempt finished", attrs...)
}

func (o *SlogObserver) OnSuccess(ctx context.Context, label string, tl Timeline) {
	o.logger().InfoContext(ctx, "effex: run succeeded", timelineAttrs(label, tl)...)
}

func (o *SlogObserver) OnFailure(ctx context.Context, label string, tl Timeline) {
	attrs := timelineAttrs(label, tl)
	if tl.FinalErr != nil {
		attrs = append(attrs, slog.String("error", tl.FinalErr.Error()))
	}
	o.logger().WarnContext(ctx, "effex: run failed", attrs...)
}

func timelineAttrs(label string, tl Timeline) []any {
	attrs := []any{
		slog.String("label", label),
		slog.String("mode", string(tl.Mode)),
		slog.Int("attempts", len(tl.Attempts)),
		slog.Duration("elapsed", tl.End.Sub(tl.Start)),
	}
	if tl.RunID != "" {
		attrs = append(attrs, slog.String("run_id", tl.RunID))
	}
	return attrs
}
