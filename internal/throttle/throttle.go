// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package throttle spaces outbound calls to shared services.
//
// A Gate grants requests one at a time, at least base-jitter apart and
// on average base apart. The jitter keeps long runs of lookups from
// forming a fixed-period train.
package throttle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Test seams. Tests swap these for a fake clock.
var (
	timeNow = time.Now

	sleepFor = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
)

// Gate serializes requests to one upstream service. The zero interval
// gate grants immediately; construct with NewGate otherwise.
type Gate struct {
	mu          sync.Mutex
	base        time.Duration
	jitter      time.Duration
	rng         *rand.Rand
	nextAllowed time.Time
}

// NewGate returns a Gate that spaces grants base apart, each offset by
// a uniform random amount in [-jitter, +jitter]. A jitter larger than
// base is clamped so the spacing never goes negative.
func NewGate(base, jitter time.Duration) *Gate {
	if base < 0 {
		base = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > base {
		jitter = base
	}
	seed := uint64(time.Now().UnixNano())
	return &Gate{
		base:   base,
		jitter: jitter,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Wait blocks until the caller may issue its request, or until ctx is
// done. The slot is reserved before sleeping, so concurrent callers
// queue behind each other instead of waking together.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.base == 0 {
		return nil
	}

	g.mu.Lock()
	now := timeNow()
	wait := g.nextAllowed.Sub(now)
	grant := now
	if wait > 0 {
		grant = g.nextAllowed
	}
	g.nextAllowed = grant.Add(g.interval())
	g.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return sleepFor(ctx, wait)
}

// interval returns the spacing to the next grant. Caller holds g.mu.
func (g *Gate) interval() time.Duration {
	if g.jitter == 0 {
		return g.base
	}
	span := int64(2*g.jitter) + 1
	offset := time.Duration(g.rng.Int64N(span)) - g.jitter
	return g.base + offset
}
