package stress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	hfhttp "github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status": "ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func getter(url string) CallFunc {
	client := hfhttp.NewClient()
	return func(ctx context.Context) *hfhttp.Envelope {
		return client.Get(ctx, url, nil)
	}
}

func TestRunner_RateMode(t *testing.T) {
	srv, hits := newTarget(t, http.StatusOK)

	cfg := &Config{Mode: RateMode, Duration: 300 * time.Millisecond, Rate: 50, MaxVUs: 5}
	result, err := NewRunner(cfg, getter(srv.URL)).Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, result.Summary.TotalRequests)
	assert.Equal(t, result.Summary.TotalRequests, result.Summary.SuccessCount)
	assert.Equal(t, int64(hits.Load()), result.Summary.TotalRequests)
	// 50/s for 300ms, plus the initial token
	assert.LessOrEqual(t, result.Summary.TotalRequests, int64(20))
	assert.Positive(t, result.RPS)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Thresholds)
}

func TestRunner_VUMode(t *testing.T) {
	srv, _ := newTarget(t, http.StatusOK)

	cfg := &Config{Mode: VUMode, Duration: 200 * time.Millisecond, VUs: 3, MaxVUs: 3, ThinkTime: 20 * time.Millisecond}
	result, err := NewRunner(cfg, getter(srv.URL)).Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Summary.TotalRequests, int64(3))
	assert.Zero(t, result.Summary.FailureCount)
}

func TestRunner_VUModeRampUp(t *testing.T) {
	srv, _ := newTarget(t, http.StatusOK)

	cfg := &Config{Mode: VUMode, Duration: 300 * time.Millisecond, VUs: 4, MaxVUs: 4, RampUp: 200 * time.Millisecond, ThinkTime: 10 * time.Millisecond}
	result, err := NewRunner(cfg, getter(srv.URL)).Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, result.Summary.TotalRequests)
}

func TestRunner_Thresholds(t *testing.T) {
	srv, _ := newTarget(t, http.StatusInternalServerError)

	th, err := ParseThresholds("errors<10%,p95<10s")
	require.NoError(t, err)
	cfg := &Config{Mode: RateMode, Duration: 150 * time.Millisecond, Rate: 40, MaxVUs: 2, Thresholds: th}

	result, err := NewRunner(cfg, getter(srv.URL)).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.Thresholds, 2)
	byName := map[string]ThresholdResult{}
	for _, tr := range result.Thresholds {
		byName[tr.Name] = tr
	}
	assert.True(t, byName["p95"].Passed)
	assert.False(t, byName["errors"].Passed)
	assert.Equal(t, "100.00%", byName["errors"].Actual)
	assert.Equal(t, result.Summary.TotalRequests, result.Summary.Problems["SERVER_ERROR"])
}

func TestRunner_SharedCollectorAndProgress(t *testing.T) {
	srv, _ := newTarget(t, http.StatusOK)
	collector := metrics.NewCollector()

	var (
		mu      sync.Mutex
		updates []Progress
	)
	cfg := &Config{Mode: RateMode, Duration: 200 * time.Millisecond, Rate: 100, MaxVUs: 4}
	runner := NewRunner(cfg, getter(srv.URL),
		WithCollector(collector),
		WithProgress(func(p Progress) {
			mu.Lock()
			updates = append(updates, p)
			mu.Unlock()
		}, 20*time.Millisecond),
	)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, result.Summary.TotalRequests, collector.Summary().TotalRequests)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, updates)
	assert.Equal(t, 200*time.Millisecond, updates[0].Duration)
	assert.NotNil(t, updates[0].Summary)
}

func TestRunner_InvalidConfig(t *testing.T) {
	_, err := NewRunner(&Config{}, getter("http://127.0.0.1")).Run(context.Background())
	assert.ErrorContains(t, err, "invalid config")
}

func TestRunner_CallerCancel(t *testing.T) {
	srv, _ := newTarget(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	cfg := &Config{Mode: RateMode, Duration: time.Minute, Rate: 20, MaxVUs: 2}
	start := time.Now()
	_, err := NewRunner(cfg, getter(srv.URL)).Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestThresholds_Evaluate(t *testing.T) {
	summary := &metrics.Summary{
		TotalRequests: 100,
		FailureCount:  2,
		P50DurationMs: 10,
		P95DurationMs: 150,
		P99DurationMs: 400,
		MaxDurationMs: 900,
	}
	th := Thresholds{
		P50:        20 * time.Millisecond,
		P95:        100 * time.Millisecond,
		P99:        time.Second,
		MaxLatency: time.Second,
		ErrorRate:  0.01,
		MinRPS:     10,
	}

	results := th.Evaluate(summary, 12.5)
	require.Len(t, results, 6)

	passed := map[string]bool{}
	for _, r := range results {
		passed[r.Name] = r.Passed
	}
	assert.Equal(t, map[string]bool{
		"p50": true, "p95": false, "p99": true, "max": true, "errors": false, "rps": true,
	}, passed)
}
