// Package sched provides the bounded worker pool effects run on, including the
// managed-blocking mode that keeps the pool from starving when a worker must
// block.
package sched

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Pool is a bounded set of worker slots.
//
// A goroutine holds a slot while it runs work submitted through Do or Group.
// Work that must block (sleeping, waiting on I/O, waiting for children) calls
// Block, which hands the slot back for the duration of the wait so other work
// can run. The number of goroutines actively computing therefore stays at or
// below Size, while blocked goroutines never pin capacity.
//
// Submissions are never rejected: work waits for a slot instead.
type Pool struct {
	size    int64
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *slog.Logger

	running       atomic.Int64
	blocked       atomic.Int64
	submitted     atomic.Int64
	compensations atomic.Int64
}

// Options configures a Pool.
type Options struct {
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*Options)

// WithRateLimit throttles how fast work may acquire slots.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *Options) {
		o.Limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLimiter uses an existing limiter, which may be shared between pools.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *Options) {
		o.Limiter = l
	}
}

// WithLogger sets the logger used for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// New creates a pool with size slots. A size below 1 uses GOMAXPROCS.
func New(size int, opts ...Option) *Pool {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return NewFromOptions(size, o)
}

// NewFromOptions creates a pool from a config struct.
func NewFromOptions(size int, o Options) *Pool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size:    int64(size),
		sem:     semaphore.NewWeighted(int64(size)),
		limiter: o.Limiter,
		logger:  o.Logger,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Size returns the number of slots.
func (p *Pool) Size() int { return int(p.size) }

// Stats is a point-in-time view of pool usage.
type Stats struct {
	Size          int
	Running       int64
	Blocked       int64
	Submitted     int64
	Compensations int64
}

// Stats returns current usage counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:          int(p.size),
		Running:       p.running.Load(),
		Blocked:       p.blocked.Load(),
		Submitted:     p.submitted.Load(),
		Compensations: p.compensations.Load(),
	}
}

// worker marks a goroutine that holds (or temporarily handed back) a slot.
type worker struct {
	pool *Pool
	held atomic.Bool
}

type workerKey struct{}

func workerFrom(ctx context.Context, p *Pool) *worker {
	w, ok := ctx.Value(workerKey{}).(*worker)
	if !ok || w == nil || w.pool != p {
		return nil
	}
	return w
}

// InWorker reports whether ctx belongs to work running on p.
func (p *Pool) InWorker(ctx context.Context) bool {
	return workerFrom(ctx, p) != nil
}

// Do runs fn on a slot of p in the calling goroutine and returns once fn
// returns. The context passed to fn marks it as a worker of p.
//
// If ctx already belongs to a worker of p, fn runs inline on that worker's
// slot. The only error is a failure to obtain a slot (rate limiter or context).
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if p.InWorker(ctx) {
		fn(ctx)
		return nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.submitted.Add(1)
	p.running.Add(1)

	w := &worker{pool: p}
	w.held.Store(true)
	defer func() {
		p.running.Add(-1)
		if w.held.Swap(false) {
			p.sem.Release(1)
		}
	}()

	fn(context.WithValue(ctx, workerKey{}, w))
	return nil
}

// Block runs a blocking fn on behalf of the pool whose worker ctx belongs to,
// handing that worker's slot back while fn runs. Outside any worker fn simply
// runs.
func Block(ctx context.Context, fn func()) {
	if ctx == nil {
		fn()
		return
	}
	w, _ := ctx.Value(workerKey{}).(*worker)
	if w == nil {
		fn()
		return
	}
	w.pool.Block(ctx, fn)
}

// Block runs a blocking fn. When ctx belongs to a worker of p that holds its
// slot, the slot is released while fn runs so other work can use it, and it is
// reacquired before Block returns. Outside a worker, fn simply runs.
func (p *Pool) Block(ctx context.Context, fn func()) {
	w := workerFrom(ctx, p)
	if w == nil || !w.held.CompareAndSwap(true, false) {
		fn()
		return
	}

	p.running.Add(-1)
	p.blocked.Add(1)
	p.compensations.Add(1)
	p.sem.Release(1)
	p.logger.Debug("sched: worker blocked, slot released",
		slog.Int64("blocked", p.blocked.Load()),
		slog.Int64("size", p.size),
	)

	defer func() {
		// The slot must come back even if ctx is done: the owner releases it on exit.
		_ = p.sem.Acquire(context.Background(), 1)
		w.held.Store(true)
		p.blocked.Add(-1)
		p.running.Add(1)
	}()

	fn()
}
