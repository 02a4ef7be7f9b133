package peer

import (
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/campanel/internal/transport"
)

// Camera manages the camera-host side of a WebRTC connection. It creates
// the frames and control channels and answers the viewer's offer.
type Camera struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	transport *transport.DataChannelTransport

	mu     sync.Mutex
	viewer string // the viewer we're connected to
}

// NewCamera creates a Camera peer manager.
func NewCamera(sig Signaler, o Options) (*Camera, error) {
	pc, err := NewPeerConnection(o)
	if err != nil {
		return nil, err
	}

	c := &Camera{pc: pc, sig: sig}

	// The channels must exist before the local description is set.
	c.transport, err = transport.CreateChannels(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	sendCandidates(pc, sig, c.viewerID, o.logger())
	return c, nil
}

// Transport returns the DataChannelTransport for sending frames and control messages.
func (c *Camera) Transport() *transport.DataChannelTransport {
	return c.transport
}

func (c *Camera) viewerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

// HandleOffer processes an incoming offer from a viewer.
func (c *Camera) HandleOffer(from string, payload json.RawMessage) error {
	c.mu.Lock()
	c.viewer = from
	c.mu.Unlock()

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return err
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.sig.SendAnswer(from, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate.
func (c *Camera) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(c.pc, payload)
}

// Close shuts down the peer connection.
func (c *Camera) Close() {
	if c.pc != nil {
		c.pc.Close()
	}
}
