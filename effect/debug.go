package effect

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/effex/classify"
	"github.com/aponysus/effex/observe"
)

// Debug instruments e without changing its outcome: every run opens a span
// named label, logs start and end at debug level with a fresh run id, and
// reports a single-attempt timeline to the runtime observer.
func (e Effect[T]) Debug(label string) Effect[T] {
	if e == nil {
		Invalid("debug", "nil effect")
	}
	if label == "" {
		label = defaultLabel
	}
	return func(ctx context.Context) (T, error) {
		rt := RuntimeFrom(ctx)
		runID := uuid.NewString()

		ctx, span := rt.tracer.Start(ctx, label,
			trace.WithAttributes(
				attribute.String("effex.label", label),
				attribute.String("effex.run_id", runID),
			),
		)
		defer span.End()

		capture, hasCapture := observe.TimelineCaptureFromContext(ctx)
		tl := observe.Timeline{
			Label: label,
			RunID: runID,
			Mode:  observe.ModeDebug,
			Start: rt.clock(),
		}
		info := observe.AttemptInfo{Label: label, Mode: observe.ModeDebug, RunID: runID}
		rt.observer.OnStart(ctx, label, observe.ModeDebug)
		rt.logger.DebugContext(ctx, "effex: effect started", slog.Any("effect", info))

		v, err := e(observe.WithAttemptInfo(observe.WithoutTimelineCapture(ctx), info))

		tl.End = rt.clock()
		tl.FinalErr = err
		rec := observe.AttemptRecord{
			StartTime:     tl.Start,
			EndTime:       tl.End,
			Err:           err,
			BudgetAllowed: true,
		}
		attrs := []any{
			slog.String("label", label),
			slog.String("run_id", runID),
			slog.Duration("elapsed", tl.End.Sub(tl.Start)),
		}
		if err != nil {
			rec.Outcome = classify.Outcome{Kind: classify.OutcomeNonRetryable, Reason: "failure"}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			attrs = append(attrs, slog.String("error", err.Error()))
		} else {
			rec.Outcome = classify.Outcome{Kind: classify.OutcomeSuccess, Reason: "success"}
			span.SetStatus(codes.Ok, "")
		}
		tl.Attempts = []observe.AttemptRecord{rec}
		rt.observer.OnAttempt(ctx, label, rec)
		rt.logger.DebugContext(ctx, "effex: effect finished", attrs...)

		if err != nil {
			rt.observer.OnFailure(ctx, label, tl)
		} else {
			rt.observer.OnSuccess(ctx, label, tl)
		}
		if hasCapture {
			observe.StoreTimelineCapture(capture, &tl)
		}
		return v, err
	}
}
