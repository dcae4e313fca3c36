// Package ratelimit spaces outbound requests per provider.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/pkg/metrics"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two grants for one provider.
const DefaultInterval = time.Second

// Gate grants at most one request per interval to each provider.
// Providers never share a limiter.
type Gate struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[source.ID]*rate.Limiter
}

// New creates a gate. A non-positive interval disables spacing.
func New(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		limiters: make(map[source.ID]*rate.Limiter),
	}
}

// Acquire blocks until the provider may be called. A cancelled context
// returns the context error and does not consume the slot.
func (g *Gate) Acquire(ctx context.Context, id source.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := g.limiter(id)

	start := time.Now()
	err := l.Wait(ctx)
	metrics.RecordGateWait(string(id), time.Since(start))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// Wait refuses up front when the deadline would pass before the slot.
	return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

func (g *Gate) limiter(id source.ID) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[id]
	if !ok {
		limit := rate.Inf
		if g.interval > 0 {
			limit = rate.Every(g.interval)
		}
		l = rate.NewLimiter(limit, 1)
		g.limiters[id] = l
	}
	return l
}
