package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// detach strips the worker marker so a new goroutine acquires its own slot.
func detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, workerKey{}, (*worker)(nil))
}

// Go runs fn on its own goroutine and slot. If no slot can be obtained (ctx
// done or the rate limiter refused), onErr receives the error instead.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context), onErr func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = detach(ctx)
	go func() {
		if err := p.Do(ctx, fn); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

// MemberPanic is re-raised by Group.Wait when a member panicked.
type MemberPanic struct {
	Value any
	Stack []byte
}

func (m *MemberPanic) Error() string {
	return fmt.Sprintf("effex: panic in group member: %v", m.Value)
}

// Group fans work out over a pool. Every member runs on its own goroutine and
// acquires its own slot; Wait blocks in managed mode, so a worker waiting for
// its children hands its slot to them, whichever pool that worker belongs to.
//
// Members are never cancelled because a sibling failed.
type Group struct {
	pool *Pool
	ctx  context.Context
	eg   errgroup.Group

	mu       sync.Mutex
	panicked *MemberPanic
}

// NewGroup creates a group whose members run on p. ctx is the parent context:
// if it belongs to a worker of p, Wait releases that worker's slot.
func (p *Pool) NewGroup(ctx context.Context) *Group {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Group{pool: p, ctx: ctx}
}

// Go starts fn as a member. fn's error, or the error from acquiring a slot, is
// reported by Wait (first one wins, as errgroup does).
func (g *Group) Go(fn func(ctx context.Context) error) {
	memberCtx := detach(g.ctx)
	g.eg.Go(func() error {
		var err error
		acqErr := g.pool.Do(memberCtx, func(ctx context.Context) {
			defer func() {
				if r := recover(); r != nil {
					g.mu.Lock()
					if g.panicked == nil {
						g.panicked = &MemberPanic{Value: r, Stack: debug.Stack()}
					}
					g.mu.Unlock()
				}
			}()
			err = fn(ctx)
		})
		if acqErr != nil {
			return acqErr
		}
		return err
	})
}

// Wait blocks until every member returned. A member panic is re-raised here as
// a *MemberPanic after all members finished.
func (g *Group) Wait() error {
	var err error
	Block(g.ctx, func() {
		err = g.eg.Wait()
	})
	g.mu.Lock()
	p := g.panicked
	g.mu.Unlock()
	if p != nil {
		panic(p)
	}
	return err
}
