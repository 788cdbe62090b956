// Package kdf bounds the number of concurrent key-derivation computations.
//
// PBKDF2 with a six-figure iteration count is the deliberate throttle of the
// credential scheme, but an unbounded burst of signins would seize every core
// and starve unrelated requests. Every derivation in the repo acquires a slot
// from a Gate first; callers waiting for a slot block in channel order and
// give up when their request context is cancelled.
package kdf

import (
	"context"
	"runtime"
)

type (
	Gate struct {
		slots chan struct{}
	}
)

// NewGate returns a gate with the given number of slots. Sizes below one
// fall back to GOMAXPROCS.
func NewGate(size int) *Gate {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Gate{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or ctx is cancelled. On success the
// returned release function must be called exactly once. A nil gate never
// blocks.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
