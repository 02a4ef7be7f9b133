package signaling

import "encoding/json"

// Message types for signaling protocol.
const (
	TypeRegister           = "register"
	TypeRegistered         = "registered"
	TypeListCameras        = "list-cameras"
	TypeCameras            = "cameras"
	TypeCamerasUpdated     = "cameras-updated"
	TypeOffer              = "offer"
	TypeAnswer             = "answer"
	TypeICECandidate       = "ice-candidate"
	TypePing               = "ping"
	TypePong               = "pong"
	TypeError              = "error"
	TypeCameraDisconnected = "camera-disconnected"
)

// ClientType distinguishes a camera host from a viewer.
const (
	ClientTypeCamera = "camera"
	ClientTypeViewer = "viewer"
)

// Message is the envelope for all signaling messages.
type Message struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	From       string          `json:"from,omitempty"`
	Target     string          `json:"target,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	List       []CameraInfo    `json:"list,omitempty"`
	CameraID   string          `json:"cameraId,omitempty"`
	Msg        string          `json:"message,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

// CameraInfo describes a camera host in the camera list.
type CameraInfo struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}

// FindCamera looks id up in a camera list.
func FindCamera(cameras []CameraInfo, id string) (CameraInfo, bool) {
	for _, c := range cameras {
		if c.ID == id {
			return c, true
		}
	}
	return CameraInfo{}, false
}
