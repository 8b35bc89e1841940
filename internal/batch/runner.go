// Package batch fans probes out across a list of targets with bounded
// parallelism and gathers exactly one result per target.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/sshcheck/pkg/models"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMaxParallelism is the upper bound on concurrent probes.
const DefaultMaxParallelism = 10

// Prober is the consumer-side interface for a single-target probe.
type Prober interface {
	Probe(ctx context.Context, target string, cfg models.CheckConfig) models.CheckResult
}

// ProgressFunc is called after every completed probe with the number of
// completions so far, the batch size and the results gathered so far in
// completion order. The slice is a copy owned by the callee.
type ProgressFunc func(completed, total int, partial []models.CheckResult)

// Option configures a Runner.
type Option func(*Runner)

// WithMaxParallelism sets the upper bound on concurrent probes. Values < 1
// keep the default.
func WithMaxParallelism(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxParallelism = n
		}
	}
}

// WithStartRate paces probe starts to perSecond with the given burst.
// A rate <= 0 disables pacing.
func WithStartRate(perSecond float64, burst int) Option {
	return func(r *Runner) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics records probe counters and durations.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner executes batches. A Runner holds no per-batch state and can run
// several batches concurrently.
type Runner struct {
	prober         Prober
	maxParallelism int
	limiter        *rate.Limiter
	metrics        *Metrics
	logger         *zap.Logger
}

// New creates a Runner around prober.
func New(prober Prober, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		prober:         prober,
		maxParallelism: DefaultMaxParallelism,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Parallelism returns the number of concurrent probes used for n targets:
// min(bound, n), and at least 1.
func (r *Runner) Parallelism(n int) int {
	p := r.maxParallelism
	if n < p {
		p = n
	}
	if p < 1 {
		p = 1
	}
	return p
}

// Run probes every target and returns the run with results in input order.
// The only error is an invalid cfg; per-target failures are results.
func (r *Runner) Run(ctx context.Context, targets []string, cfg models.CheckConfig, onProgress ProgressFunc) (*models.Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	run := &models.Run{
		ID:          uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		Config:      cfg,
		Parallelism: r.Parallelism(len(targets)),
		Results:     make([]models.CheckResult, len(targets)),
	}

	logger := r.logger.With(zap.String("run_id", run.ID))
	logger.Info("batch started",
		zap.Int("targets", len(targets)),
		zap.Int("parallelism", run.Parallelism),
		zap.Int("port", cfg.Port),
		zap.Duration("timeout", cfg.Timeout),
	)

	agg := newAggregator(run.Results, onProgress, logger)
	p := pool.New().WithMaxGoroutines(run.Parallelism)
	for i, target := range targets {
		p.Go(func() {
			agg.record(i, r.probeOne(ctx, target, cfg))
		})
	}
	p.Wait()

	run.FinishedAt = time.Now().UTC()

	s := run.Summary()
	logger.Info("batch finished",
		zap.Duration("duration", run.Duration()),
		zap.Int("connected", s.Connected),
		zap.Int("failed", s.Failed),
		zap.Int("timeout", s.Timeout),
		zap.Int("error", s.Error),
	)
	return run, nil
}

// probeOne runs a single probe and converts anything the prober could not
// classify into an Error result, so the target is never dropped.
func (r *Runner) probeOne(ctx context.Context, target string, cfg models.CheckConfig) (result models.CheckResult) {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return notStarted(target, "empty target")
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return notStarted(trimmed, "Unexpected error: probe not started: "+err.Error())
		}
	}

	if r.metrics != nil {
		r.metrics.inFlight.Inc()
		defer r.metrics.inFlight.Dec()
		defer func() { r.metrics.observe(result) }()
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("probe panicked", zap.String("target", trimmed), zap.Any("panic", v))
			result = notStarted(trimmed, fmt.Sprintf("Unexpected error: %v", v))
		}
	}()

	return r.prober.Probe(ctx, trimmed, cfg)
}

func notStarted(target, msg string) models.CheckResult {
	return models.CheckResult{
		Server:    target,
		Status:    models.StatusError,
		Error:     msg,
		CheckedAt: time.Now().UTC(),
	}
}

// aggregator is the only state shared between probe goroutines.
type aggregator struct {
	mu         sync.Mutex
	results    []models.CheckResult
	completed  []models.CheckResult
	onProgress ProgressFunc
	logger     *zap.Logger
}

func newAggregator(results []models.CheckResult, onProgress ProgressFunc, logger *zap.Logger) *aggregator {
	return &aggregator{
		results:    results,
		completed:  make([]models.CheckResult, 0, len(results)),
		onProgress: onProgress,
		logger:     logger,
	}
}

// record stores the result for input position i. The progress callback runs
// under the lock so callers observe completions one at a time and in order.
func (a *aggregator) record(i int, res models.CheckResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results[i] = res
	a.completed = append(a.completed, res)

	if a.onProgress == nil {
		return
	}
	partial := make([]models.CheckResult, len(a.completed))
	copy(partial, a.completed)
	a.notify(len(a.completed), len(a.results), partial)
}

// notify isolates the batch from a misbehaving progress sink.
func (a *aggregator) notify(completed, total int, partial []models.CheckResult) {
	defer func() {
		if v := recover(); v != nil {
			a.logger.Warn("progress callback panicked", zap.Any("panic", v))
		}
	}()
	a.onProgress(completed, total, partial)
}
