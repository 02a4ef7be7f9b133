package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Device holds the state every Source shares: the open flag, the latest
// frame slot, the preferred size and the listener list. Concrete sources
// embed it and drive transitions through Transition.
type Device struct {
	name string

	stateMu sync.Mutex // serializes transitions and their notifications
	open    atomic.Bool
	frame   atomic.Pointer[Frame]
	size    atomic.Pointer[Size]

	lmu       sync.Mutex
	listeners []Listener
}

// NewDevice creates a closed device.
func NewDevice(name string, size Size) *Device {
	d := &Device{name: name}
	d.size.Store(&size)
	return d
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) IsOpen() bool {
	return d.open.Load()
}

func (d *Device) LatestFrame() *Frame {
	return d.frame.Load()
}

// PutFrame replaces the latest frame.
func (d *Device) PutFrame(f *Frame) {
	d.frame.Store(f)
}

func (d *Device) ViewSize() Size {
	return *d.size.Load()
}

func (d *Device) SetViewSize(s Size) {
	d.size.Store(&s)
}

func (d *Device) AddListener(l Listener) {
	d.lmu.Lock()
	defer d.lmu.Unlock()
	for _, existing := range d.listeners {
		if existing == l {
			return
		}
	}
	d.listeners = append(d.listeners, l)
}

func (d *Device) RemoveListener(l Listener) bool {
	d.lmu.Lock()
	defer d.lmu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Transition moves the device to the requested state and notifies listeners.
// When opening, hook runs before the flag is raised; when closing, the flag
// is lowered first so pollers stop before hook tears the producer down, and
// the latest frame is dropped once the producer is gone. Transitions to the
// current state are no-ops.
func (d *Device) Transition(ctx context.Context, open bool, hook func(context.Context) error) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.open.Load() == open {
		return nil
	}

	var hookErr error
	if open {
		if hook != nil {
			if err := hook(ctx); err != nil {
				return fmt.Errorf("open %s: %w", d.name, err)
			}
		}
		d.open.Store(true)
	} else {
		d.open.Store(false)
		if hook != nil {
			if err := hook(ctx); err != nil {
				hookErr = fmt.Errorf("close %s: %w", d.name, err)
			}
		}
		d.frame.Store(nil)
	}

	return errors.Join(hookErr, d.notify(ctx, open))
}

func (d *Device) notify(ctx context.Context, open bool) error {
	d.lmu.Lock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.lmu.Unlock()

	ev := Event{Source: d.name, Time: time.Now()}
	var errs []error
	for _, l := range listeners {
		var err error
		if open {
			ev.Type = EventOpened
			err = l.SourceOpened(ctx, ev)
		} else {
			ev.Type = EventClosed
			err = l.SourceClosed(ctx, ev)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
