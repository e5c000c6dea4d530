package budget

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenBucketBudget_ConcurrentUsage(t *testing.T) {
	// Capacity 1000, no refill.
	b := NewTokenBucketBudget(1000, 0)

	var allowedCount int32
	var deniedCount int32

	var wg sync.WaitGroup
	workers := 10
	attemptsPerWorker := 200

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < attemptsPerWorker; j++ {
				time.Sleep(time.Duration(rand.Intn(100)) * time.Microsecond)

				d := b.AllowAttempt(context.Background(), "op", j+1, KindRetry)
				if d.Allowed {
					atomic.AddInt32(&allowedCount, 1)
				} else {
					atomic.AddInt32(&deniedCount, 1)
				}
			}
		}()
	}

	wg.Wait()

	if allowedCount != 1000 {
		t.Errorf("allowedCount=%d, want 1000", allowedCount)
	}
	if deniedCount != 1000 {
		t.Errorf("deniedCount=%d, want 1000", deniedCount)
	}
}

func TestUnlimitedBudget_AllowsAttempts(t *testing.T) {
	b := UnlimitedBudget{}
	d := b.AllowAttempt(context.Background(), "op", 1, KindRepeat)
	if !d.Allowed || d.Reason != ReasonAllowed {
		t.Fatalf("decision=%+v, want allowed with reason %q", d, ReasonAllowed)
	}
}

func TestTokenBucketBudget_NilReceiver(t *testing.T) {
	var b *TokenBucketBudget
	d := b.AllowAttempt(context.Background(), "op", 1, KindRetry)
	if d.Allowed || d.Reason != ReasonBudgetNil {
		t.Fatalf("decision=%+v, want denied with reason %q", d, ReasonBudgetNil)
	}
}

func TestTokenBucketBudget_Refill(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewTokenBucketBudget(2, 1)
	b.now = func() time.Time { return now }
	b.tokens = 0
	b.last = now.Add(-1500 * time.Millisecond)

	d := b.AllowAttempt(context.Background(), "op", 1, KindRetry)
	if !d.Allowed {
		t.Fatalf("expected allowed attempt after refill")
	}
	if math.Abs(b.tokens-0.5) > 1e-9 {
		t.Fatalf("tokens=%v, want 0.5", b.tokens)
	}

	d = b.AllowAttempt(context.Background(), "op", 2, KindRetry)
	if d.Allowed || d.Reason != ReasonBudgetDenied {
		t.Fatalf("decision=%+v, want denied with reason %q", d, ReasonBudgetDenied)
	}

	now = now.Add(10 * time.Second)
	b.AllowAttempt(context.Background(), "op", 3, KindRetry)
	if b.tokens != 1 {
		t.Fatalf("tokens=%v, want refill capped at capacity then one consumed", b.tokens)
	}
}

func TestTokenBucketBudget_InvalidConfig(t *testing.T) {
	b := NewTokenBucketBudget(-1, math.NaN())
	if b.capacity != 0 || b.refillPerSecond != 0 {
		t.Fatalf("capacity=%v refill=%v, want 0,0", b.capacity, b.refillPerSecond)
	}

	d := b.AllowAttempt(context.Background(), "op", 1, KindRetry)
	if d.Allowed {
		t.Fatalf("expected denied attempt with zero capacity")
	}
}

func TestRateBudget(t *testing.T) {
	b := NewRateBudget(0.001, 2)
	for i := 1; i <= 2; i++ {
		if d := b.AllowAttempt(context.Background(), "op", i, KindRetry); !d.Allowed {
			t.Fatalf("attempt %d denied within burst", i)
		}
	}
	if d := b.AllowAttempt(context.Background(), "op", 3, KindRetry); d.Allowed || d.Reason != ReasonBudgetDenied {
		t.Fatalf("decision=%+v, want denied", d)
	}

	var nilBudget *RateBudget
	if d := nilBudget.AllowAttempt(context.Background(), "op", 1, KindRetry); d.Allowed {
		t.Fatalf("nil budget allowed an attempt")
	}
}

func TestConcurrencyBudget_ReleaseFreesSlot(t *testing.T) {
	b := NewConcurrencyBudget(1)
	first := b.AllowAttempt(context.Background(), "op", 1, KindRetry)
	if !first.Allowed || first.Release == nil {
		t.Fatalf("decision=%+v, want allowed with release", first)
	}
	if d := b.AllowAttempt(context.Background(), "op", 2, KindRetry); d.Allowed {
		t.Fatalf("second concurrent attempt allowed")
	}
	first.Release()
	first.Release()
	if d := b.AllowAttempt(context.Background(), "op", 3, KindRetry); !d.Allowed {
		t.Fatalf("attempt denied after release")
	}
	if d := b.AllowAttempt(context.Background(), "op", 4, KindRetry); d.Allowed {
		t.Fatalf("double release freed an extra slot")
	}
}

func TestAttemptKindString(t *testing.T) {
	if KindRetry.String() != "retry" || KindRepeat.String() != "repeat" {
		t.Fatalf("unexpected kind strings")
	}
}
