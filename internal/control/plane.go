// Package control provides the pause/resume/quit control plane for the
// refresh scheduler. Pausing stops new refresh work from being dispatched
// while in-flight tasks run to completion; quitting is terminal.
package control

import (
	"context"
	"sync"
	"sync/atomic"
)

// Plane coordinates pause/resume/quit across the scheduler's workers.
// Resume is broadcast by closing a channel, so any number of waiters wake
// at once.
type Plane struct {
	mu       sync.RWMutex
	paused   atomic.Bool
	quit     atomic.Bool
	resumeCh chan struct{}
}

// New returns a running (not paused) control plane.
func New() *Plane {
	return &Plane{resumeCh: make(chan struct{})}
}

// Pause stops new refresh dispatch. Idempotent.
func (p *Plane) Pause() {
	p.paused.Store(true)
}

// Resume restarts refresh dispatch and wakes every waiter. Idempotent.
func (p *Plane) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused.Load() {
		p.paused.Store(false)
		close(p.resumeCh)
		p.resumeCh = make(chan struct{})
	}
}

// Quit marks the plane as shutting down. There is no way back.
func (p *Plane) Quit() {
	p.quit.Store(true)
	p.Resume()
}

// IsPaused reports whether dispatch is paused.
func (p *Plane) IsPaused() bool {
	return p.paused.Load()
}

// IsQuitting reports whether shutdown was requested.
func (p *Plane) IsQuitting() bool {
	return p.quit.Load()
}

// WaitIfPaused blocks until the plane is resumed, quit, or ctx is done.
// Returns immediately when not paused.
func (p *Plane) WaitIfPaused(ctx context.Context) error {
	for p.paused.Load() && !p.quit.Load() {
		p.mu.RLock()
		resumeCh := p.resumeCh
		p.mu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resumeCh:
		}
	}
	return nil
}
