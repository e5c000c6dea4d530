package observe

import (
	"context"
	"log/slog"
)

type attemptInfoKey struct{}

// AttemptInfo is per-attempt metadata attached to the context an effect body
// runs with.
type AttemptInfo struct {
	Label   string
	Mode    Mode
	RunID   string
	Attempt int
}

// LogValue groups the fields for slog; a zero Attempt and empty RunID are
// omitted.
func (a AttemptInfo) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("label", a.Label),
		slog.String("mode", string(a.Mode)),
	}
	if a.RunID != "" {
		attrs = append(attrs, slog.String("run_id", a.RunID))
	}
	if a.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", a.Attempt))
	}
	return slog.GroupValue(attrs...)
}

// WithAttemptInfo returns a context derived from ctx that carries info.
func WithAttemptInfo(ctx context.Context, info AttemptInfo) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, info)
}

// AttemptFromContext returns the AttemptInfo from ctx, if present.
func AttemptFromContext(ctx context.Context) (AttemptInfo, bool) {
	if ctx == nil {
		return AttemptInfo{}, false
	}
	info, ok := ctx.Value(attemptInfoKey{}).(AttemptInfo)
	return info, ok
}
