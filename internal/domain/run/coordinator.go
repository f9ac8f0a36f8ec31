// Package run implements the latest-wins guard around summarization runs.
package run

import (
	"context"
	"sync"
	"sync/atomic"
)

// Run is the identity of one invocation. It is handed to every step that may
// produce a visible effect; steps compare it against the coordinator instead
// of capturing shared state.
type Run struct {
	id     uint64
	coord  *Coordinator
	ctx    context.Context
	cancel context.CancelFunc
}

// ID is strictly greater than the ID of every earlier run of the coordinator.
func (r *Run) ID() uint64 { return r.id }

// Context is cancelled when the run is superseded or released.
func (r *Run) Context() context.Context { return r.ctx }

// Current reports whether no newer run has started.
func (r *Run) Current() bool { return r.coord.IsCurrent(r.id) }

// Active reports whether the run is current and its context is still live.
func (r *Run) Active() bool { return r.Current() && r.ctx.Err() == nil }

// Release frees the run's context once it has finished. Safe to call twice.
func (r *Run) Release() { r.cancel() }

// Coordinator owns the current run identity and its cancellation.
type Coordinator struct {
	mu      sync.Mutex
	current atomic.Uint64
	cancel  context.CancelFunc
}

// NewCoordinator returns a coordinator with no active run.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Begin cancels the previous run, if any, and starts a new current run whose
// context derives from parent.
func (c *Coordinator) Begin(parent context.Context) *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	id := c.current.Add(1)
	return &Run{id: id, coord: c, ctx: ctx, cancel: cancel}
}

// Supersede cancels the current run and makes it stale without starting a new one.
func (c *Coordinator) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.current.Add(1)
}

// Current returns the identity of the most recent run.
func (c *Coordinator) Current() uint64 {
	return c.current.Load()
}

// IsCurrent compares id with the current identity.
func (c *Coordinator) IsCurrent(id uint64) bool {
	return c.current.Load() == id
}
