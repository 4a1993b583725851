package crawler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of requests in flight across the whole run.
// Every fetch, at every level of the tree, passes through the same Gate.
type Gate struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewGate creates a gate admitting at most size concurrent holders
func NewGate(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a slot is free or ctx is done
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	n := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Size returns the admission limit
func (g *Gate) Size() int {
	return g.size
}

// Peak returns the highest number of simultaneous holders seen so far
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}
