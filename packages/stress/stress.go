package stress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/throttle"
)

// CallFunc issues one call. The envelope it returns is recorded.
type CallFunc func(ctx context.Context) *http.Envelope

// Progress is a point-in-time view of a running test.
type Progress struct {
	Elapsed  time.Duration
	Duration time.Duration
	InFlight int64
	Summary  *metrics.Summary
}

// Runner executes stress tests.
type Runner struct {
	config    *Config
	call      CallFunc
	collector *metrics.Collector

	progress      func(Progress)
	progressEvery time.Duration
	inFlight      atomic.Int64
}

type RunnerOption func(*Runner)

// WithCollector records envelopes into c instead of a private collector.
func WithCollector(c *metrics.Collector) RunnerOption {
	return func(r *Runner) {
		r.collector = c
	}
}

// WithProgress calls fn every interval while the test runs.
func WithProgress(fn func(Progress), interval time.Duration) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
		r.progressEvery = interval
	}
}

func NewRunner(config *Config, call CallFunc, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:        config,
		call:          call,
		progressEvery: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.collector == nil {
		r.collector = metrics.NewCollector()
	}
	return r
}

// Result holds the final result of a stress test.
type Result struct {
	Summary    *metrics.Summary
	Elapsed    time.Duration
	RPS        float64
	Thresholds []ThresholdResult
	Passed     bool
}

// Run generates load until the configured duration elapses or ctx is done.
// Calls in flight at the end are allowed to finish.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	if r.progress != nil {
		go r.progressLoop(runCtx, started, progressDone)
	} else {
		close(progressDone)
	}

	if r.config.Mode == VUMode {
		r.runVUMode(ctx, runCtx)
	} else {
		r.runRateMode(ctx, runCtx)
	}
	cancel()
	<-progressDone

	elapsed := time.Since(started)
	summary := r.collector.Summary()
	res := &Result{
		Summary: summary,
		Elapsed: elapsed,
		Passed:  true,
	}
	if elapsed > 0 {
		res.RPS = float64(summary.TotalRequests) / elapsed.Seconds()
	}
	if r.config.Thresholds.HasThresholds() {
		res.Thresholds = r.config.Thresholds.Evaluate(summary, res.RPS)
		for _, tr := range res.Thresholds {
			if !tr.Passed {
				res.Passed = false
			}
		}
	}
	return res, nil
}

func (r *Runner) record(ctx context.Context) {
	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	r.collector.Record(r.call(ctx))
}

// runRateMode schedules calls from a token bucket until runCtx is done.
// Calls themselves run on ctx so a call started just before the deadline
// is not cut short.
func (r *Runner) runRateMode(ctx, runCtx context.Context) {
	limiter := throttle.New(r.config.Rate, 1)
	if r.config.RampUp > 0 {
		go limiter.RampUp(runCtx, r.config.RampUp, 100*time.Millisecond)
	}

	sem := newSlots(r.config.MaxVUs)
	var wg sync.WaitGroup
	for {
		if err := limiter.Wait(runCtx); err != nil {
			break
		}
		if err := sem.acquire(runCtx); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.release()
			r.record(ctx)
		}()
	}
	wg.Wait()
}

// runVUMode runs virtual users until runCtx is done, scaling them up
// linearly during ramp-up.
func (r *Runner) runVUMode(ctx, runCtx context.Context) {
	sem := newSlots(r.config.MaxVUs)
	user := func(vuCtx context.Context) {
		for vuCtx.Err() == nil {
			if err := sem.acquire(vuCtx); err != nil {
				return
			}
			r.record(ctx)
			sem.release()

			if r.config.ThinkTime > 0 {
				select {
				case <-vuCtx.Done():
					return
				case <-time.After(r.config.ThinkTime):
				}
			}
		}
	}

	pool := newVUPool(runCtx, user)
	started := time.Now()
	pool.scale(currentVUs(r.config, 0))

	if r.config.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
	ramp:
		for {
			select {
			case <-runCtx.Done():
				break ramp
			case <-ticker.C:
				elapsed := time.Since(started)
				pool.scale(currentVUs(r.config, elapsed))
				if elapsed >= r.config.RampUp {
					break ramp
				}
			}
		}
	}

	<-runCtx.Done()
	pool.stop()
}

func (r *Runner) progressLoop(ctx context.Context, started time.Time, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.progressEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.progress(Progress{
				Elapsed:  time.Since(started),
				Duration: r.config.Duration,
				InFlight: r.inFlight.Load(),
				Summary:  r.collector.Summary(),
			})
		}
	}
}

// Evaluate checks s against every set threshold. rps is the achieved
// throughput.
func (t Thresholds) Evaluate(s *metrics.Summary, rps float64) []ThresholdResult {
	var out []ThresholdResult
	latency := func(name string, limit time.Duration, actualMs float64) {
		if limit <= 0 {
			return
		}
		actual := time.Duration(actualMs * float64(time.Millisecond))
		out = append(out, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.Round(time.Microsecond).String(),
		})
	}
	latency("p50", t.P50, s.P50DurationMs)
	latency("p95", t.P95, s.P95DurationMs)
	latency("p99", t.P99, s.P99DurationMs)
	latency("max", t.MaxLatency, s.MaxDurationMs)

	if t.ErrorRate > 0 {
		var rate float64
		if s.TotalRequests > 0 {
			rate = float64(s.FailureCount) / float64(s.TotalRequests)
		}
		out = append(out, ThresholdResult{
			Name:     "errors",
			Passed:   rate <= t.ErrorRate,
			Expected: fmt.Sprintf("< %.2f%%", t.ErrorRate*100),
			Actual:   fmt.Sprintf("%.2f%%", rate*100),
		})
	}
	if t.MinRPS > 0 {
		out = append(out, ThresholdResult{
			Name:     "rps",
			Passed:   rps >= t.MinRPS,
			Expected: fmt.Sprintf("> %.1f", t.MinRPS),
			Actual:   fmt.Sprintf("%.1f", rps),
		})
	}
	return out
}
