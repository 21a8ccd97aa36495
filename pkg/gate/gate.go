// Package gate provides a pause/resume rendezvous for long-running loops.
package gate

import (
	"context"
	"sync"
)

// Gate suspends callers of Wait while paused. The rendezvous is a channel
// that is closed on Resume and replaced on Pause; all state changes happen
// under mu.
type Gate struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

// New creates a gate, optionally already paused.
func New(paused bool) *Gate {
	g := &Gate{
		paused:  paused,
		resumed: make(chan struct{}),
	}

	if !paused {
		close(g.resumed)
	}

	return g
}

// Wait blocks while the gate is paused. It returns once the gate is resumed,
// or as soon as ctx is done so an aborted run is never left suspended.
func (g *Gate) Wait(ctx context.Context) {
	g.mu.Lock()
	ch := g.resumed
	g.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// Pause suspends future Wait calls. It reports false if already paused.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return false
	}

	g.resumed = make(chan struct{})
	g.paused = true

	return true
}

// Resume releases all current and future Wait calls. It reports false if the
// gate was not paused.
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return false
	}

	close(g.resumed)
	g.paused = false

	return true
}

// Paused reports the current state. The answer may be stale by the time the
// caller acts on it.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.paused
}
