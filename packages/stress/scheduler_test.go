package stress

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentVUs(t *testing.T) {
	cfg := &Config{VUs: 10, RampUp: 10 * time.Second}

	assert.Equal(t, 1, currentVUs(cfg, 0))
	assert.Equal(t, 5, currentVUs(cfg, 5*time.Second))
	assert.Equal(t, 10, currentVUs(cfg, 10*time.Second))
	assert.Equal(t, 10, currentVUs(cfg, time.Minute))

	cfg.RampUp = 0
	assert.Equal(t, 10, currentVUs(cfg, 0))
}

func TestSlots(t *testing.T) {
	s := newSlots(1)
	require.NoError(t, s.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.acquire(ctx), context.DeadlineExceeded)

	s.release()
	assert.NoError(t, s.acquire(context.Background()))
}

func TestVUPool_Scale(t *testing.T) {
	var running atomic.Int32
	pool := newVUPool(context.Background(), func(ctx context.Context) {
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
	})

	pool.scale(3)
	assert.Equal(t, 3, pool.count())
	assert.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, 5*time.Millisecond)

	pool.scale(1)
	assert.Equal(t, 1, pool.count())
	assert.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, 5*time.Millisecond)

	pool.stop()
	assert.Zero(t, pool.count())
	assert.Zero(t, running.Load())
}
