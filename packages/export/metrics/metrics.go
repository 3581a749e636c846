// Package metrics collects latency and outcome metrics from envelopes and
// exports them as Prometheus metrics or JSON summaries.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	hfhttp "github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultNamespace = "hitfetch"

	// latencies are recorded in microseconds between 1us and 60s
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Record is one observed call.
type Record struct {
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	Problem    string    `json:"problem"`
	OK         bool      `json:"ok"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary aggregates every record seen by a Collector.
type Summary struct {
	TotalRequests int64            `json:"total_requests"`
	SuccessCount  int64            `json:"success_count"`
	FailureCount  int64            `json:"failure_count"`
	MinDurationMs float64          `json:"min_duration_ms"`
	MaxDurationMs float64          `json:"max_duration_ms"`
	AvgDurationMs float64          `json:"avg_duration_ms"`
	P50DurationMs float64          `json:"p50_duration_ms"`
	P95DurationMs float64          `json:"p95_duration_ms"`
	P99DurationMs float64          `json:"p99_duration_ms"`
	StatusCodes   map[int]int64    `json:"status_codes"`
	Problems      map[string]int64 `json:"problems"`
}

// Exporter receives each record and, on Flush, the summary.
type Exporter interface {
	Export(summary *Summary) error
	ExportSingle(record *Record) error
	Close() error
}

type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sizes    *prometheus.HistogramVec

	mu          sync.Mutex
	histogram   *hdrhistogram.Histogram
	total       int64
	success     int64
	failure     int64
	totalMs     float64
	minMs       float64
	maxMs       float64
	statusCodes map[int]int64
	problems    map[string]int64

	exporters []Exporter
}

type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	namespace string
	registry  *prometheus.Registry
	exporters []Exporter
}

func WithNamespace(ns string) CollectorOption {
	return func(o *collectorOptions) {
		o.namespace = ns
	}
}

// WithRegistry registers the collector's metrics on reg instead of a
// private registry.
func WithRegistry(reg *prometheus.Registry) CollectorOption {
	return func(o *collectorOptions) {
		o.registry = reg
	}
}

func WithExporters(exporters ...Exporter) CollectorOption {
	return func(o *collectorOptions) {
		o.exporters = append(o.exporters, exporters...)
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	o := collectorOptions{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(o.registry)

	return &Collector{
		registry: o.registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "requests_total",
				Help:      "Total number of calls by method and problem",
			},
			[]string{"method", "problem"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		sizes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "response_size_bytes",
				Help:      "Size of response bodies in bytes",
				Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 1000000},
			},
			[]string{"method"},
		),
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCodes: make(map[int]int64),
		problems:    make(map[string]int64),
		exporters:   o.exporters,
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record adds one envelope to the metrics.
func (c *Collector) Record(env *hfhttp.Envelope) {
	if env == nil {
		return
	}

	method := env.Method()
	problem := env.Problem.String()
	c.requests.WithLabelValues(method, problem).Inc()
	c.duration.WithLabelValues(method).Observe(env.Duration.Seconds())
	if env.Status != 0 {
		c.sizes.WithLabelValues(method).Observe(float64(len(env.Body)))
	}

	ms := float64(env.Duration.Microseconds()) / 1000
	latencyUs := min(max(env.Duration.Microseconds(), minLatencyUs), maxLatencyUs)

	c.mu.Lock()
	_ = c.histogram.RecordValue(latencyUs)
	c.total++
	if env.OK {
		c.success++
	} else {
		c.failure++
	}
	c.totalMs += ms
	if c.total == 1 || ms < c.minMs {
		c.minMs = ms
	}
	if ms > c.maxMs {
		c.maxMs = ms
	}
	if env.Status != 0 {
		c.statusCodes[env.Status]++
	}
	c.problems[problem]++
	exporters := c.exporters
	c.mu.Unlock()

	rec := &Record{
		Method:     method,
		URL:        env.URL,
		Status:     env.Status,
		Problem:    problem,
		OK:         env.OK,
		DurationMs: ms,
		Timestamp:  time.Now(),
	}
	for _, exp := range exporters {
		_ = exp.ExportSingle(rec)
	}
}

// Monitor returns a monitor that records every envelope.
func (c *Collector) Monitor() hfhttp.Monitor {
	return func(_ context.Context, env *hfhttp.Envelope) error {
		c.Record(env)
		return nil
	}
}

// Summary returns a snapshot of the aggregated metrics.
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		TotalRequests: c.total,
		SuccessCount:  c.success,
		FailureCount:  c.failure,
		MinDurationMs: c.minMs,
		MaxDurationMs: c.maxMs,
		StatusCodes:   make(map[int]int64, len(c.statusCodes)),
		Problems:      make(map[string]int64, len(c.problems)),
	}
	if c.total > 0 {
		s.AvgDurationMs = c.totalMs / float64(c.total)
		s.P50DurationMs = float64(c.histogram.ValueAtQuantile(50)) / 1000
		s.P95DurationMs = float64(c.histogram.ValueAtQuantile(95)) / 1000
		s.P99DurationMs = float64(c.histogram.ValueAtQuantile(99)) / 1000
	}
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}
	for k, v := range c.problems {
		s.Problems[k] = v
	}
	return s
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Flush exports the current summary to every exporter.
func (c *Collector) Flush() error {
	summary := c.Summary()
	for _, exp := range c.exporters {
		if err := exp.Export(summary); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters.
func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}
