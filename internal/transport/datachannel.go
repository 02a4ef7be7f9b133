package transport

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

const (
	FramesLabel  = "frames"
	ControlLabel = "control"
)

var ErrChannelNotSet = errors.New("data channel not set")

var _ BufferedFrameSender = (*DataChannelTransport)(nil)

// DataChannelTransport carries encoded frames and control messages over two
// WebRTC DataChannels. Frames are unordered and never retransmitted; control
// messages are ordered and reliable.
type DataChannelTransport struct {
	mu        sync.RWMutex
	framesDC  *webrtc.DataChannel
	controlDC *webrtc.DataChannel

	onFrame       func(data []byte)
	onControl     func(data []byte)
	onControlOpen func()
}

// NewDataChannelTransport wraps the frames and control DataChannels. Either
// may be nil and set later when the remote side negotiates it.
func NewDataChannelTransport(framesDC, controlDC *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	if controlDC != nil {
		t.SetControlChannel(controlDC)
	}
	return t
}

// CreateChannels creates both DataChannels on pc with their delivery settings.
func CreateChannels(pc *webrtc.PeerConnection) (*DataChannelTransport, error) {
	framesOrdered := false
	framesMaxRetransmits := uint16(0)
	framesDC, err := pc.CreateDataChannel(FramesLabel, &webrtc.DataChannelInit{
		Ordered:        &framesOrdered,
		MaxRetransmits: &framesMaxRetransmits,
	})
	if err != nil {
		return nil, err
	}

	controlOrdered := true
	controlDC, err := pc.CreateDataChannel(ControlLabel, &webrtc.DataChannelInit{
		Ordered: &controlOrdered,
	})
	if err != nil {
		return nil, err
	}
	return NewDataChannelTransport(framesDC, controlDC), nil
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	t.mu.RLock()
	dc := t.framesDC
	t.mu.RUnlock()
	if dc == nil {
		return ErrChannelNotSet
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) SendControl(data []byte) error {
	t.mu.RLock()
	dc := t.controlDC
	t.mu.RUnlock()
	if dc == nil {
		return ErrChannelNotSet
	}
	return dc.Send(data)
}

// FramesBuffered reports the bytes queued on the frames channel.
func (t *DataChannelTransport) FramesBuffered() uint64 {
	t.mu.RLock()
	dc := t.framesDC
	t.mu.RUnlock()
	if dc == nil {
		return 0
	}
	return dc.BufferedAmount()
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	t.onFrame = cb
	t.mu.Unlock()
}

func (t *DataChannelTransport) OnControl(cb func(data []byte)) {
	t.mu.Lock()
	t.onControl = cb
	t.mu.Unlock()
}

// OnControlOpen registers a callback fired once the control channel is open.
func (t *DataChannelTransport) OnControlOpen(cb func()) {
	t.mu.Lock()
	t.onControlOpen = cb
	t.mu.Unlock()
}

// SetFramesChannel sets or replaces the frames DataChannel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.RLock()
		cb := t.onFrame
		t.mu.RUnlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}

// SetControlChannel sets or replaces the control DataChannel.
func (t *DataChannelTransport) SetControlChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.controlDC = dc
	t.mu.Unlock()
	dc.OnOpen(func() {
		t.mu.RLock()
		cb := t.onControlOpen
		t.mu.RUnlock()
		if cb != nil {
			cb()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.RLock()
		cb := t.onControl
		t.mu.RUnlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}
