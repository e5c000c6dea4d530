package observe

import (
	"context"
	"sync/atomic"
)

// TimelineCapture holds the timeline of the next retried, repeated or debugged
// run started with the capturing context.
//
// Timeline returns nil until that run completes.
type TimelineCapture struct {
	tl atomic.Pointer[Timeline]
}

// Timeline returns the captured timeline, or nil if not yet populated.
func (c *TimelineCapture) Timeline() *Timeline {
	if c == nil {
		return nil
	}
	return c.tl.Load()
}

type timelineCaptureKey struct{}

// RecordTimeline returns a derived context that requests timeline capture,
// plus a holder for retrieving the completed timeline.
func RecordTimeline(ctx context.Context) (context.Context, *TimelineCapture) {
	if ctx == nil {
		ctx = context.Background()
	}
	capture := &TimelineCapture{}
	return context.WithValue(ctx, timelineCaptureKey{}, capture), capture
}

// TimelineCaptureFromContext returns the capture, if one was requested and not
// suppressed with WithoutTimelineCapture.
func TimelineCaptureFromContext(ctx context.Context) (*TimelineCapture, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(timelineCaptureKey{}).(*TimelineCapture)
	return v, ok && v != nil
}

// WithoutTimelineCapture hides any capture from derived contexts. Effects use
// it for the context passed to an attempt, so a nested retry does not publish
// into its parent's capture.
func WithoutTimelineCapture(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := TimelineCaptureFromContext(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, timelineCaptureKey{}, (*TimelineCapture)(nil))
}

// StoreTimelineCapture publishes the finished timeline into the capture.
func StoreTimelineCapture(capture *TimelineCapture, tl *Timeline) {
	if capture == nil || tl == nil {
		return
	}
	capture.tl.Store(tl)
}
