package observe

import "context"

// NoopObserver implements Observer with no-op methods.
type NoopObserver struct{}

func (NoopObserver) OnStart(context.Context, string, Mode)           {}
func (NoopObserver) OnAttempt(context.Context, string, AttemptRecord) {}
func (NoopObserver) OnSuccess(context.Context, string, Timeline)      {}
func (NoopObserver) OnFailure(context.Context, string, Timeline)      {}

// IsNoop reports whether o discards every event, so callers can skip building
// timelines nobody reads.
func IsNoop(o Observer) bool {
	switch o.(type) {
	case nil, NoopObserver, *NoopObserver:
		return true
	default:
		return false
	}
}
