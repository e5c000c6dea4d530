package budget

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UnlimitedBudget allows every attempt.
type UnlimitedBudget struct{}

func (UnlimitedBudget) AllowAttempt(context.Context, string, int, AttemptKind) Decision {
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// TokenBucketBudget is a simple token-bucket implementation.
//
// It starts full (capacity tokens) and refills at refillPerSecond tokens/second.
// Each re-run consumes one token.
type TokenBucketBudget struct {
	mu sync.Mutex

	capacity        float64
	refillPerSecond float64

	tokens float64
	last   time.Time
	now    func() time.Time
}

func NewTokenBucketBudget(capacity int, refillPerSecond float64) *TokenBucketBudget {
	if capacity < 0 {
		capacity = 0
	}
	if refillPerSecond < 0 || math.IsNaN(refillPerSecond) || math.IsInf(refillPerSecond, 0) {
		refillPerSecond = 0
	}
	return &TokenBucketBudget{
		capacity:        float64(capacity),
		refillPerSecond: refillPerSecond,
		tokens:          float64(capacity),
		last:            time.Now(),
		now:             time.Now,
	}
}

func (b *TokenBucketBudget) AllowAttempt(context.Context, string, int, AttemptKind) Decision {
	if b == nil {
		return Decision{Allowed: false, Reason: ReasonBudgetNil}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if math.IsNaN(b.tokens) || math.IsInf(b.tokens, 0) {
		b.tokens = 0
	}

	if b.last.IsZero() {
		b.tokens = b.capacity
	} else if b.refillPerSecond > 0 && now.After(b.last) {
		added := now.Sub(b.last).Seconds() * b.refillPerSecond
		if math.IsNaN(added) || math.IsInf(added, 0) || added < 0 {
			added = 0
		}
		b.tokens = math.Min(b.capacity, b.tokens+added)
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}
	return Decision{Allowed: false, Reason: ReasonBudgetDenied}
}

// RateBudget admits re-runs at a steady rate using a shared rate.Limiter. It
// never waits: a re-run over the rate is denied.
type RateBudget struct {
	limiter *rate.Limiter
}

// NewRateBudget allows perSecond re-runs per second with the given burst.
func NewRateBudget(perSecond float64, burst int) *RateBudget {
	return &RateBudget{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (b *RateBudget) AllowAttempt(context.Context, string, int, AttemptKind) Decision {
	if b == nil || b.limiter == nil {
		return Decision{Allowed: false, Reason: ReasonBudgetNil}
	}
	if b.limiter.Allow() {
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}
	return Decision{Allowed: false, Reason: ReasonBudgetDenied}
}

// ConcurrencyBudget caps how many re-runs may be in flight at once. Allowed
// decisions carry a Release that frees the slot.
type ConcurrencyBudget struct {
	slots chan struct{}
}

func NewConcurrencyBudget(max int) *ConcurrencyBudget {
	if max < 0 {
		max = 0
	}
	return &ConcurrencyBudget{slots: make(chan struct{}, max)}
}

func (b *ConcurrencyBudget) AllowAttempt(context.Context, string, int, AttemptKind) Decision {
	if b == nil || b.slots == nil {
		return Decision{Allowed: false, Reason: ReasonBudgetNil}
	}
	select {
	case b.slots <- struct{}{}:
		var once sync.Once
		return Decision{
			Allowed: true,
			Reason:  ReasonAllowed,
			Release: func() { once.Do(func() { <-b.slots }) },
		}
	default:
		return Decision{Allowed: false, Reason: ReasonBudgetDenied}
	}
}
