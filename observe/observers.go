package observe

import "context"

// BaseObserver implements Observer with no-op methods.
//
// Users can embed BaseObserver to implement only the callbacks they need.
type BaseObserver struct{}

func (BaseObserver) OnStart(context.Context, string, Mode)           {}
func (BaseObserver) OnAttempt(context.Context, string, AttemptRecord) {}
func (BaseObserver) OnSuccess(context.Context, string, Timeline)      {}
func (BaseObserver) OnFailure(context.Context, string, Timeline)      {}

// MultiObserver fans out events to multiple observers.
type MultiObserver struct {
	Observers []Observer
}

func (m MultiObserver) OnStart(ctx context.Context, label string, mode Mode) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnStart(ctx, label, mode)
		}
	}
}

func (m MultiObserver) OnAttempt(ctx context.Context, label string, rec AttemptRecord) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnAttempt(ctx, label, rec)
		}
	}
}

func (m MultiObserver) OnSuccess(ctx context.Context, label string, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnSuccess(ctx, label, tl)
		}
	}
}

func (m MultiObserver) OnFailure(ctx context.Context, label string, tl Timeline) {
	for _, o := range m.Observers {
		if o != nil {
			o.OnFailure(ctx, label, tl)
		}
	}
}
