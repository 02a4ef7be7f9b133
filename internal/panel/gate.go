package panel

import (
	"context"
	"sync"
)

// PauseGate suspends the pacing loop without spinning. The paused flag and
// the wake channel are guarded by one mutex: Wait checks the flag and
// captures the channel under it, Resume clears the flag and closes the
// channel under it, so a Resume can never fall between check and wait.
type PauseGate struct {
	mu     sync.Mutex
	paused bool
	wake   chan struct{} // closed on Resume
}

func NewPauseGate() *PauseGate {
	return &PauseGate{wake: make(chan struct{})}
}

// Pause sets the gate. Calling it while paused is a no-op.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.wake = make(chan struct{})
}

// Resume releases every waiter and clears the gate. Calling it while not
// paused is a no-op.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	close(g.wake)
	g.paused = false
}

func (g *PauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. It returns nil once resumed, or
// ctx.Err() if ctx is done first. There is no timeout.
func (g *PauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	wake := g.wake
	g.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
