package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	hfhttp "github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(method string, status int, d time.Duration) *hfhttp.Envelope {
	problem := hfhttp.Classify(status, nil)
	env := &hfhttp.Envelope{
		OK:       problem == hfhttp.ProblemNone,
		Problem:  problem,
		Status:   status,
		Body:     []byte(`{"ok":true}`),
		Duration: d,
		URL:      "https://api.example.com/x",
		Config:   &hfhttp.RequestConfig{Method: method},
	}
	if !env.OK {
		env.OriginalError = errors.New("failed")
	}
	return env
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.Record(envelope("GET", 200, time.Duration(i)*time.Millisecond))
	}
	c.Record(envelope("POST", 500, 200*time.Millisecond))

	s := c.Summary()
	assert.Equal(t, int64(101), s.TotalRequests)
	assert.Equal(t, int64(100), s.SuccessCount)
	assert.Equal(t, int64(1), s.FailureCount)
	assert.InDelta(t, 1.0, s.MinDurationMs, 0.001)
	assert.InDelta(t, 200.0, s.MaxDurationMs, 0.001)
	assert.InDelta(t, 51.0, s.P50DurationMs, 1.5)
	assert.InDelta(t, 96.0, s.P95DurationMs, 2.5)
	assert.Equal(t, int64(100), s.StatusCodes[200])
	assert.Equal(t, int64(1), s.Problems["SERVER_ERROR"])
	assert.Equal(t, int64(100), s.Problems["NONE"])
}

func TestCollector_EmptySummary(t *testing.T) {
	s := NewCollector().Summary()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.P99DurationMs)
	assert.NotNil(t, s.StatusCodes)
}

func TestCollector_PrometheusCounters(t *testing.T) {
	c := NewCollector(WithNamespace("test"))
	c.Record(envelope("GET", 200, time.Millisecond))
	c.Record(envelope("GET", 200, time.Millisecond))
	c.Record(envelope("GET", 404, time.Millisecond))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "NONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "CLIENT_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.Record(envelope("GET", 200, 10*time.Millisecond))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `hitfetch_requests_total{method="GET",problem="NONE"} 1`)
	assert.Contains(t, body, "hitfetch_request_duration_seconds_bucket")
}

func TestCollector_MonitorOnClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewCollector()
	client := hfhttp.NewClient(hfhttp.WithBaseURL(server.URL), hfhttp.WithMonitor(c.Monitor()))

	client.Get(context.Background(), "/ok", nil)
	client.Get(context.Background(), "/fail", nil)

	s := c.Summary()
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.StatusCodes[502])
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewJSONExporter(WithJSONWriter(&buf), WithJSONPretty(false), WithJSONRecords(true))
	c := NewCollector(WithExporters(exp))

	c.Record(envelope("GET", 200, 5*time.Millisecond))
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, int64(1), out.Summary.TotalRequests)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "GET", out.Records[0].Method)
	assert.Equal(t, "NONE", out.Records[0].Problem)
}

func TestServe(t *testing.T) {
	c := NewCollector()
	c.Record(envelope("GET", 200, time.Millisecond))

	s, err := Serve(c, "127.0.0.1:0", nil)
	require.NoError(t, err)
	defer func() { _ = s.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hitfetch_requests_total")
}
