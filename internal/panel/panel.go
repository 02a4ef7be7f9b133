// Package panel keeps a paced view of a camera: one background loop per
// source copies the latest frame into a slot at an adjustable frequency,
// can be paused without spinning, and lives exactly as long as the source
// is open.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/junsooki/campanel/internal/source"
)

// ShutdownTimeout bounds how long a closing source waits for the loop.
const ShutdownTimeout = 1000 * time.Millisecond

// ErrShutdownInterrupted is returned when the caller's context ends while
// the panel is waiting for its loop to stop.
var ErrShutdownInterrupted = errors.New("panel: shutdown wait interrupted")

// Renderer is asked to redraw after every pacing cycle. RequestRender must
// not block.
type Renderer interface {
	RequestRender()
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func()

func (f RendererFunc) RequestRender() { f() }

// Option configures a Panel.
type Option func(*Panel)

func WithRenderer(r Renderer) Option {
	return func(p *Panel) { p.renderer = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Panel) { p.log = l }
}

// WithFrequency sets the initial frequency; it is clamped like SetFrequency.
func WithFrequency(hz float64) Option {
	return func(p *Panel) { p.freq.set(hz) }
}

// WithSizeHook registers a function called with the source's preferred size
// whenever the source opens.
func WithSizeHook(fn func(source.Size)) Option {
	return func(p *Panel) { p.sizeHook = fn }
}

type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *loopHandle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Panel binds a pacing loop to a source's lifecycle and exposes the
// pause, resume and frequency controls.
type Panel struct {
	src      source.Source
	gate     *PauseGate
	freq     frequency
	frame    atomic.Pointer[source.Frame]
	renderer Renderer
	sizeHook func(source.Size)
	log      *slog.Logger
	stats    counters

	mu     sync.Mutex
	handle *loopHandle
	closed bool
}

// New binds a panel to src. A closed source is opened first. The pacing loop
// is running when New returns.
func New(ctx context.Context, src source.Source, opts ...Option) (*Panel, error) {
	p := &Panel{
		src:      src,
		gate:     NewPauseGate(),
		renderer: RendererFunc(func() {}),
		log:      slog.Default(),
	}
	p.freq.set(DefaultFrequency)
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "panel", "source", src.Name())

	src.AddListener(p)
	if !src.IsOpen() {
		if err := src.Open(ctx); err != nil {
			src.RemoveListener(p)
			return nil, fmt.Errorf("open source %s: %w", src.Name(), err)
		}
	}

	p.reportSize()
	p.mu.Lock()
	p.startLocked()
	p.mu.Unlock()
	return p, nil
}

// SourceOpened starts a loop unless one is already running.
func (p *Panel) SourceOpened(_ context.Context, ev source.Event) error {
	p.log.Info("source opened", "at", ev.Time)
	p.reportSize()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked()
	return nil
}

// SourceClosed stops the running loop, waiting at most ShutdownTimeout.
func (p *Panel) SourceClosed(ctx context.Context, ev source.Event) error {
	p.log.Info("source closed", "at", ev.Time)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked(ctx)
}

// Close detaches the panel from its source and stops the loop. The source
// itself is left as it is.
func (p *Panel) Close(ctx context.Context) error {
	p.src.RemoveListener(p)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.stopLocked(ctx)
}

func (p *Panel) startLocked() {
	if p.closed {
		return
	}
	if p.handle != nil && p.handle.alive() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{cancel: cancel, done: make(chan struct{})}
	p.handle = h
	p.stats.loopsStarted.Add(1)
	p.log.Debug("starting pacing loop", "frequency", p.freq.get())

	go func() {
		defer close(h.done)
		p.run(ctx)
	}()
}

// stopLocked cancels the tracked loop and joins it with a bounded wait. The
// handle is cleared whether or not the loop finished.
func (p *Panel) stopLocked(ctx context.Context) error {
	h := p.handle
	if h == nil {
		return nil
	}
	defer func() { p.handle = nil }()

	h.cancel()
	timer := time.NewTimer(ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		p.stats.loopsStopped.Add(1)
		p.log.Debug("pacing loop stopped")
		return nil
	case <-timer.C:
		p.stats.slowShutdowns.Add(1)
		p.log.Warn("pacing loop still running after shutdown timeout", "timeout", ShutdownTimeout)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownInterrupted, ctx.Err())
	}
}

func (p *Panel) reportSize() {
	if p.sizeHook == nil {
		return
	}
	if size := p.src.ViewSize(); !size.Empty() {
		p.sizeHook(size)
	}
}

// Pause suspends the loop at its next pause check.
func (p *Panel) Pause() {
	p.gate.Pause()
}

// Resume wakes a paused loop.
func (p *Panel) Resume() {
	p.gate.Resume()
}

func (p *Panel) Paused() bool {
	return p.gate.Paused()
}

// SetFrequency sets the pacing frequency in Hz, clamped to
// [MinFrequency, MaxFrequency]. The running loop picks it up on its next
// iteration.
func (p *Panel) SetFrequency(hz float64) {
	p.freq.set(hz)
	p.log.Debug("frequency changed", "requested", hz, "effective", p.freq.get())
}

func (p *Panel) Frequency() float64 {
	return p.freq.get()
}

// Frame returns the frame stored by the last pacing cycle, or nil.
func (p *Panel) Frame() *source.Frame {
	return p.frame.Load()
}

// Running reports whether a pacing loop is alive.
func (p *Panel) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil && p.handle.alive()
}

func (p *Panel) Source() source.Source {
	return p.src
}

func (p *Panel) PreferredSize() source.Size {
	return p.src.ViewSize()
}

func (p *Panel) Stats() Stats {
	return p.stats.snapshot()
}
