package fetcher

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Gate enforces a minimum inter-request delay so concurrent workers still
// respect one global spacing per target host (or per process). It holds a
// monotonic "earliest next request time" per key; each caller reserves a
// slot under the lock and then sleeps outside it, so waiters queue without
// serializing the actual network I/O.
type Gate struct {
	mu       sync.Mutex
	next     map[string]time.Time
	minDelay time.Duration
	maxDelay time.Duration
	perHost  bool
}

// processKey is the single map key used in per-process mode.
const processKey = ""

// NewGate creates a politeness gate. Each reservation advances the next
// request time by a delay drawn uniformly from [minDelay, maxDelay].
// When perHost is false the gate is one global clock for the process.
func NewGate(minDelay, maxDelay time.Duration, perHost bool) *Gate {
	return &Gate{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
		maxDelay: maxDelay,
		perHost:  perHost,
	}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (g *Gate) Wait(ctx context.Context, host string) error {
	key := processKey
	if g.perHost {
		key = host
	}

	g.mu.Lock()
	now := time.Now()

	at := g.next[key]
	if at.Before(now) {
		at = now
	}
	g.next[key] = at.Add(g.delay())
	g.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// delay draws the randomized inter-request spacing. Called with mu held.
func (g *Gate) delay() time.Duration {
	if g.maxDelay <= g.minDelay {
		return g.minDelay
	}

	return g.minDelay + time.Duration(rand.Int63n(int64(g.maxDelay-g.minDelay)))
}
