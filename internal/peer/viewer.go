package peer

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/campanel/internal/transport"
)

// Viewer manages the viewer side of a WebRTC connection. It sends the
// offer and adopts the channels the camera host created.
type Viewer struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	transport *transport.DataChannelTransport
	cameraID  string
}

// NewViewer creates a Viewer peer manager.
func NewViewer(sig Signaler, cameraID string, o Options) (*Viewer, error) {
	pc, err := NewPeerConnection(o)
	if err != nil {
		return nil, err
	}
	log := o.logger()

	v := &Viewer{
		pc:        pc,
		sig:       sig,
		transport: transport.NewDataChannelTransport(nil, nil),
		cameraID:  cameraID,
	}

	// Accept data channels from the camera.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Info("data channel received", "label", dc.Label())
		switch dc.Label() {
		case transport.FramesLabel:
			v.transport.SetFramesChannel(dc)
		case transport.ControlLabel:
			v.transport.SetControlChannel(dc)
		default:
			log.Warn("unexpected data channel", "label", dc.Label())
		}
	})

	sendCandidates(pc, sig, func() string { return cameraID }, log)
	return v, nil
}

// Transport returns the DataChannelTransport.
func (v *Viewer) Transport() *transport.DataChannelTransport {
	return v.transport
}

// Connect initiates the WebRTC connection by creating and sending an offer.
func (v *Viewer) Connect() error {
	// An offer without media or channels carries no ICE; declare one
	// negotiation channel so the camera's channels can follow.
	if _, err := v.pc.CreateDataChannel("negotiation", nil); err != nil {
		return err
	}

	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := v.pc.SetLocalDescription(offer); err != nil {
		return err
	}

	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.cameraID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return err
	}
	return v.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(v.pc, payload)
}

// Close shuts down the peer connection.
func (v *Viewer) Close() {
	if v.pc != nil {
		v.pc.Close()
	}
}
