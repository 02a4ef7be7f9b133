package peer

import (
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/campanel/internal/logging"
)

// Signaler is the part of the signaling client a peer needs.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// Options configures peer connections.
type Options struct {
	ICEServers []string
	Logger     *slog.Logger
	// OnStateChange is called with every peer connection state change.
	OnStateChange func(webrtc.PeerConnectionState)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// NewPeerConnection creates a configured PeerConnection whose pion logs go
// to slog.
func NewPeerConnection(o Options) (*webrtc.PeerConnection, error) {
	log := o.logger()

	se := webrtc.SettingEngine{}
	se.LoggerFactory = logging.PionLoggerFactory{Logger: log}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	cfg := webrtc.Configuration{}
	if len(o.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: o.ICEServers}}
	}
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("peer connection state", "state", state.String())
		if o.OnStateChange != nil {
			o.OnStateChange(state)
		}
	})
	return pc, nil
}

func sendCandidates(pc *webrtc.PeerConnection, sig Signaler, target func() string, log *slog.Logger) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		to := target()
		if to == "" {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Warn("marshal ICE candidate", "error", err)
			return
		}
		_ = sig.SendICECandidate(to, data)
	})
}

func addCandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return pc.AddICECandidate(candidate)
}
