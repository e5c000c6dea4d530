package observe

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aponysus/effex/classify"
)

func TestPrometheusObserver_CountsAttemptsAndRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPrometheusObserver(reg)
	ctx := context.Background()

	obs.OnAttempt(ctx, "fetch", AttemptRecord{Outcome: classify.Outcome{Kind: classify.OutcomeRetryable, Reason: "retryable_error"}})
	obs.OnAttempt(ctx, "fetch", AttemptRecord{Outcome: classify.Outcome{Kind: classify.OutcomeSuccess, Reason: "success"}})
	obs.OnAttempt(ctx, "fetch", AttemptRecord{})

	start := time.Now()
	obs.OnSuccess(ctx, "fetch", Timeline{Mode: ModeRetry, Start: start, End: start.Add(time.Millisecond)})
	obs.OnFailure(ctx, "fetch", Timeline{Mode: ModeRepeat, Start: start, End: start})

	obs.OnAttempt(ctx, "fetch", AttemptRecord{Outcome: classify.Outcome{Kind: classify.OutcomeRetryable, Reason: "context_deadline_exceeded"}})

	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("fetch", "retryable")); got != 2 {
		t.Fatalf("retryable attempts=%v, want 2 (reasons differ, kind is shared)", got)
	}
	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("fetch", "success")); got != 1 {
		t.Fatalf("successful attempts=%v, want 1", got)
	}
	if n := testutil.CollectAndCount(obs.attempts); n != 3 {
		t.Fatalf("attempt series=%d, want 3 (retryable, success, unknown)", n)
	}
	if got := testutil.ToFloat64(obs.attempts.WithLabelValues("fetch", "unknown")); got != 1 {
		t.Fatalf("unknown attempts=%v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.runs.WithLabelValues("fetch", "retry", "success")); got != 1 {
		t.Fatalf("successful runs=%v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.runs.WithLabelValues("fetch", "repeat", "failure")); got != 1 {
		t.Fatalf("failed runs=%v, want 1", got)
	}
	if n := testutil.CollectAndCount(obs.duration); n != 2 {
		t.Fatalf("duration series=%d, want 2", n)
	}
}
