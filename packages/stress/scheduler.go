package stress

import (
	"context"
	"sync"
	"time"
)

// slots bounds the number of calls in flight.
type slots chan struct{}

func newSlots(n int) slots {
	if n < 1 {
		n = 1
	}
	return make(slots, n)
}

func (s slots) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s slots) release() { <-s }

// currentVUs returns the VU target after elapsed of a linear ramp-up.
func currentVUs(cfg *Config, elapsed time.Duration) int {
	if cfg.RampUp <= 0 || elapsed >= cfg.RampUp {
		return cfg.VUs
	}
	return max(1, int(float64(cfg.VUs)*float64(elapsed)/float64(cfg.RampUp)))
}

// vuPool runs virtual users. Each user loops until its own context or the
// pool's is done.
type vuPool struct {
	ctx   context.Context
	run   func(ctx context.Context)
	mu    sync.Mutex
	stops []context.CancelFunc
	wg    sync.WaitGroup
}

func newVUPool(ctx context.Context, run func(ctx context.Context)) *vuPool {
	return &vuPool{ctx: ctx, run: run}
}

// scale starts or stops users until target are running.
func (p *vuPool) scale(target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.stops) < target {
		ctx, cancel := context.WithCancel(p.ctx)
		p.stops = append(p.stops, cancel)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	for len(p.stops) > target {
		last := len(p.stops) - 1
		p.stops[last]()
		p.stops = p.stops[:last]
	}
}

func (p *vuPool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stops)
}

// stop cancels every user and waits for them to return.
func (p *vuPool) stop() {
	p.scale(0)
	p.wg.Wait()
}
