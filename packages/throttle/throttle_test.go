package throttle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	hfhttp "github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_Paces(t *testing.T) {
	l := New(20, 1)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	// first token is free, the next two arrive 50ms apart
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiter_SetRate(t *testing.T) {
	l := New(5, 1)
	assert.Equal(t, 5.0, l.Rate())
	l.SetRate(10)
	assert.Equal(t, 10.0, l.Rate())
}

func TestLimiter_CurrentRate(t *testing.T) {
	l := New(100, 1)
	assert.Equal(t, 100.0, l.CurrentRate(time.Second, 0))
	assert.InDelta(t, 50.0, l.CurrentRate(5*time.Second, 10*time.Second), 0.001)
	assert.Equal(t, 100.0, l.CurrentRate(20*time.Second, 10*time.Second))
}

func TestLimiter_RampUp(t *testing.T) {
	l := New(100, 1)
	l.RampUp(context.Background(), 50*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 100.0, l.Rate())
}

func TestLimiter_TransformCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	l := New(0.001, 1)
	client := hfhttp.NewClient(hfhttp.WithBaseURL(server.URL), hfhttp.WithRequestTransform(l.Transform()))

	first := client.Get(context.Background(), "/", nil)
	require.True(t, first.OK)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := client.Get(ctx, "/", nil)

	assert.False(t, second.OK)
	assert.Equal(t, hfhttp.ProblemTimeout, second.Problem)
}

func TestLimiter_TransformCancelledByCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	l := New(0.001, 1)
	client := hfhttp.NewClient(hfhttp.WithBaseURL(server.URL), hfhttp.WithRequestTransform(l.Transform()))
	require.True(t, client.Get(context.Background(), "/", nil).OK)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	env := client.Get(ctx, "/", nil)

	assert.False(t, env.OK)
	assert.Equal(t, hfhttp.ProblemCancel, env.Problem)
}
