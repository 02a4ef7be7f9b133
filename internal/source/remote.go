package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/junsooki/campanel/internal/control"
	"github.com/junsooki/campanel/internal/decoder"
)

// Link is the transport a Remote talks to the camera host over.
type Link interface {
	OnFrame(callback func(data []byte))
	OnControl(callback func(data []byte))
	SendControl(data []byte) error
}

// Remote is a camera living on another host. Its open state mirrors the
// state messages the host sends; Open and Close ask the host to change it.
type Remote struct {
	*Device
	dec decoder.Decoder
	log *slog.Logger

	mu      sync.Mutex
	link    Link
	changed chan struct{} // closed and replaced on every state message
	seq     atomic.Uint64
}

// NewRemote creates a disconnected, closed remote camera.
func NewRemote(name string, dec decoder.Decoder, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		Device:  NewDevice(name, Size{}),
		dec:     dec,
		log:     logger.With("source", name),
		changed: make(chan struct{}),
	}
}

// Attach wires the remote to a link. Frames and state messages from the
// link are handled with ctx.
func (r *Remote) Attach(ctx context.Context, l Link) {
	r.mu.Lock()
	r.link = l
	r.mu.Unlock()

	l.OnFrame(r.HandleFrame)
	l.OnControl(func(data []byte) {
		msg, err := control.Decode(data)
		if err != nil {
			r.log.Warn("dropping control message", "error", err)
			return
		}
		if err := r.HandleControl(ctx, msg); err != nil {
			r.log.Error("applying remote state", "error", err)
		}
	})
}

// Detach drops the link and marks the camera closed.
func (r *Remote) Detach(ctx context.Context) error {
	r.mu.Lock()
	r.link = nil
	r.mu.Unlock()
	err := r.Transition(ctx, false, nil)
	r.signal()
	return err
}

// HandleFrame decodes an encoded frame into the latest frame slot. Frames
// arriving while closed are dropped.
func (r *Remote) HandleFrame(data []byte) {
	if !r.IsOpen() {
		return
	}
	img, err := r.dec.Decode(data)
	if err != nil {
		r.log.Debug("dropping undecodable frame", "error", err, "bytes", len(data))
		return
	}
	r.PutFrame(&Frame{Image: img, Seq: r.seq.Add(1), Timestamp: time.Now()})
}

// HandleControl applies a message received from the camera host.
func (r *Remote) HandleControl(ctx context.Context, msg control.Message) error {
	if msg.Type != control.TypeState {
		r.log.Debug("ignoring control message", "type", msg.Type)
		return nil
	}
	if msg.Width > 0 && msg.Height > 0 {
		r.SetViewSize(Size{Width: msg.Width, Height: msg.Height})
	}
	err := r.Transition(ctx, msg.Open, nil)
	r.signal()
	return err
}

func (r *Remote) Open(ctx context.Context) error {
	return r.request(ctx, control.TypeOpen, true)
}

func (r *Remote) Close(ctx context.Context) error {
	return r.request(ctx, control.TypeClose, false)
}

// Send forwards a control message to the camera host.
func (r *Remote) Send(msg control.Message) error {
	r.mu.Lock()
	l := r.link
	r.mu.Unlock()
	if l == nil {
		return ErrNotConnected
	}
	data, err := control.Encode(msg)
	if err != nil {
		return err
	}
	return l.SendControl(data)
}

// request sends t and waits until the host reports the wanted state.
func (r *Remote) request(ctx context.Context, t control.Type, want bool) error {
	if r.IsOpen() == want {
		return nil
	}
	r.mu.Lock()
	changed := r.changed
	r.mu.Unlock()

	if err := r.Send(control.Message{Type: t}); err != nil {
		return fmt.Errorf("%s %s: %w", t, r.Name(), err)
	}
	for r.IsOpen() != want {
		select {
		case <-changed:
			r.mu.Lock()
			changed = r.changed
			r.mu.Unlock()
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", t, r.Name(), ctx.Err())
		}
	}
	return nil
}

func (r *Remote) signal() {
	r.mu.Lock()
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()
}
