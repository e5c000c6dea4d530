package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/aponysus/effex/budget"
	"github.com/aponysus/effex/effect"
	"github.com/aponysus/effex/exp"
	"github.com/aponysus/effex/internal/telemetry"
	"github.com/aponysus/effex/observe"
	"github.com/aponysus/effex/policy"
	"github.com/aponysus/effex/sched"
)

const memberLabel = "fanout.member"

var errTransient = errors.New("transient member failure")

func newFanoutCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "Run many blocking members in one parallel list on a small pool",
		Long: `Build a parallel list of --members effects, each blocking for --block
in managed mode and failing with probability --fail-rate, and run it on a pool
of --pool workers. Failed members are retried with --policy from the spec file.

With --repeat 0 the run repeats every --interval until interrupted, which is
useful together with --metrics-addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFanout(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), loadFanoutConfig(v))
		},
	}

	cmd.Flags().Int("members", 200, "number of parallel members")
	cmd.Flags().Int("pool", 4, "worker pool size")
	cmd.Flags().Duration("block", 10*time.Millisecond, "how long each member blocks")
	cmd.Flags().Float64("fail-rate", 0, "probability in [0,1] that a member attempt fails")
	cmd.Flags().String("policy", "", "retry policy name from the spec file (default: 3 retries, constant --block delay)")
	cmd.Flags().Float64("budget-rate", 0, "retries allowed per second across members; 0 disables the budget")
	cmd.Flags().Float64("submit-rate", 0, "pool admissions per second; 0 disables the limiter")
	cmd.Flags().Int("repeat", 1, "number of runs; 0 repeats until interrupted")
	cmd.Flags().Duration("interval", 2*time.Second, "pause between runs")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :2112)")
	cmd.Flags().Bool("trace", false, "print debug spans to stderr")

	for _, f := range []struct{ key, flag string }{
		{"fanout.members", "members"},
		{"fanout.pool", "pool"},
		{"fanout.block", "block"},
		{"fanout.fail_rate", "fail-rate"},
		{"fanout.policy", "policy"},
		{"fanout.budget_rate", "budget-rate"},
		{"fanout.submit_rate", "submit-rate"},
		{"fanout.repeat", "repeat"},
		{"fanout.interval", "interval"},
		{"fanout.metrics_addr", "metrics-addr"},
		{"fanout.trace", "trace"},
	} {
		bindFlag(v, f.key, cmd.Flags(), f.flag)
	}
	return cmd
}

type fanoutConfig struct {
	LogLevel    string
	LogFormat   string
	Policies    string
	Members     int
	Pool        int
	Block       time.Duration
	FailRate    float64
	Policy      string
	BudgetRate  float64
	SubmitRate  float64
	Repeat      int
	Interval    time.Duration
	MetricsAddr string
	Trace       bool
}

func loadFanoutConfig(v *viper.Viper) fanoutConfig {
	return fanoutConfig{
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		Policies:    v.GetString("policies"),
		Members:     v.GetInt("fanout.members"),
		Pool:        v.GetInt("fanout.pool"),
		Block:       v.GetDuration("fanout.block"),
		FailRate:    v.GetFloat64("fanout.fail_rate"),
		Policy:      v.GetString("fanout.policy"),
		BudgetRate:  v.GetFloat64("fanout.budget_rate"),
		SubmitRate:  v.GetFloat64("fanout.submit_rate"),
		Repeat:      v.GetInt("fanout.repeat"),
		Interval:    v.GetDuration("fanout.interval"),
		MetricsAddr: v.GetString("fanout.metrics_addr"),
		Trace:       v.GetBool("fanout.trace"),
	}
}

// fanoutReport summarizes one run.
type fanoutReport struct {
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Stats     sched.Stats
}

func runFanout(ctx context.Context, stdout, stderr io.Writer, cfg fanoutConfig) error {
	if cfg.Members < 0 {
		return fmt.Errorf("members must not be negative, got %d", cfg.Members)
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return fmt.Errorf("fail-rate must be in [0,1], got %v", cfg.FailRate)
	}

	logger := buildLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	var traceOut io.Writer
	if cfg.Trace {
		traceOut = stderr
	}
	shutdownTracer, err := telemetry.InitTracer(ctx, "effsim", traceOut)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	p, err := fanoutPolicy(cfg)
	if err != nil {
		return err
	}

	poolOpts := []sched.Option{sched.WithLogger(logger)}
	if cfg.SubmitRate > 0 {
		poolOpts = append(poolOpts, sched.WithRateLimit(rate.Limit(cfg.SubmitRate), max(1, cfg.Pool)))
	}
	pool := sched.New(cfg.Pool, poolOpts...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(sched.NewCollector(pool, "fanout"))

	budgets := budget.NewRegistry()
	var retryOpts []effect.RetryOption
	retryOpts = append(retryOpts, effect.WithLabel(memberLabel))
	if cfg.BudgetRate > 0 {
		budgets.MustRegister("fanout", budget.NewRateBudget(cfg.BudgetRate, max(1, int(cfg.BudgetRate))))
		retryOpts = append(retryOpts, effect.WithBudget("fanout"))
	}

	rt := effect.NewRuntime(
		effect.WithPool(pool),
		effect.WithLogger(logger),
		effect.WithBudgetRegistry(budgets),
		effect.WithObserver(observe.MultiObserver{Observers: []observe.Observer{
			observe.NewSlogObserver(logger),
			observe.NewPrometheusObserver(reg),
		}}),
	)
	ctx = effect.WithRuntime(ctx, rt)

	if cfg.MetricsAddr != "" {
		telemetry.StartMetricsServer(ctx, cfg.MetricsAddr, reg, logger)
	}

	list := buildFanout(cfg, p, retryOpts)
	if cfg.Trace {
		list = list.DebugEach(memberLabel)
	}
	run := list.Effect()
	if cfg.Trace {
		run = run.Debug("fanout.run")
	}
	for n := 1; cfg.Repeat == 0 || n <= cfg.Repeat; n++ {
		runID := uuid.NewString()
		report, err := fanoutOnce(ctx, run, pool)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Info("fanout finished",
			slog.String("run_id", runID),
			slog.Int("run", n),
			slog.Int("succeeded", report.Succeeded),
			slog.Int("failed", report.Failed),
			slog.Duration("elapsed", report.Elapsed),
		)
		printReport(stdout, n, cfg, report)

		if cfg.Repeat != 0 && n >= cfg.Repeat {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Interval):
		}
	}
	return nil
}

func fanoutPolicy(cfg fanoutConfig) (policy.Policy, error) {
	if cfg.Policy == "" {
		return policy.ConstantDelay(cfg.Block).LimitRetries(3), nil
	}
	return loadPolicy(cfg.Policies, cfg.Policy)
}

// buildFanout returns a parallel list whose members report whether they
// eventually succeeded.
func buildFanout(cfg fanoutConfig, p policy.Policy, opts []effect.RetryOption) *exp.ListExp[bool] {
	members := make([]effect.Effect[bool], cfg.Members)
	for i := range members {
		attempt := effect.ManagedTask(func(ctx context.Context) (int, error) {
			t := time.NewTimer(cfg.Block)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-t.C:
			}
			if cfg.FailRate > 0 && rand.Float64() < cfg.FailRate {
				return 0, errTransient
			}
			return i, nil
		})
		members[i] = effect.ThenOr(attempt.Retry(p, opts...),
			func(int) effect.Effect[bool] { return effect.Succeed(true) },
			func(error) effect.Effect[bool] { return effect.Succeed(false) },
		)
	}
	return exp.ListPar(members...)
}

func fanoutOnce(ctx context.Context, run effect.Effect[[]bool], pool *sched.Pool) (fanoutReport, error) {
	start := time.Now()
	results, err := run.Run(ctx)
	if err != nil {
		return fanoutReport{}, err
	}
	r := fanoutReport{Elapsed: time.Since(start), Stats: pool.Stats()}
	for _, ok := range results {
		if ok {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
	return r, nil
}

func printReport(w io.Writer, run int, cfg fanoutConfig, r fanoutReport) {
	fmt.Fprintf(w, "run %d: members=%d pool=%d succeeded=%d failed=%d elapsed=%s submitted=%d compensations=%d\n",
		run, cfg.Members, r.Stats.Size, r.Succeeded, r.Failed, r.Elapsed.Round(time.Millisecond),
		r.Stats.Submitted, r.Stats.Compensations)
}
