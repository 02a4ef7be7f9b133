package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("signaling: not connected")

// Handler callbacks for incoming signaling messages.
type Handler struct {
	OnRegistered         func()
	OnOffer              func(from string, payload json.RawMessage)
	OnAnswer             func(from string, payload json.RawMessage)
	OnICECandidate       func(from string, payload json.RawMessage)
	OnCamerasUpdated     func(cameras []CameraInfo)
	OnCameraDisconnected func(cameraID string)
	OnError              func(msg string)
	// OnClosed fires once when the connection ends for any reason.
	OnClosed func()
}

// Client is a WebSocket signaling client.
type Client struct {
	url          string
	clientID     string
	clientType   string
	handler      Handler
	pingInterval time.Duration
	log          *slog.Logger

	conn   *websocket.Conn
	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewClient creates a signaling client.
func NewClient(url, clientID, clientType string, handler Handler) *Client {
	return &Client{
		url:          url,
		clientID:     clientID,
		clientType:   clientType,
		handler:      handler,
		pingInterval: 25 * time.Second,
		log:          slog.Default().With("component", "signaling", "id", clientID),
		done:         make(chan struct{}),
	}
}

// SetPingInterval changes the heartbeat period. Call before Connect.
func (c *Client) SetPingInterval(d time.Duration) {
	if d > 0 {
		c.pingInterval = d
	}
}

// SetLogger replaces the client logger. Call before Connect.
func (c *Client) SetLogger(l *slog.Logger) {
	c.log = l.With("component", "signaling", "id", c.clientID)
}

// ID returns the id the client registers with.
func (c *Client) ID() string {
	return c.clientID
}

// Connect dials the signaling server and starts reading messages.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Register with the server.
	err = c.send(Message{
		Type:       TypeRegister,
		ID:         c.clientID,
		ClientType: c.clientType,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("signaling register: %w", err)
	}

	go c.readLoop(conn)
	go c.pingLoop()
	return nil
}

// Close shuts down the connection.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	if c.handler.OnClosed != nil {
		c.handler.OnClosed()
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendOffer sends an SDP offer to target.
func (c *Client) SendOffer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeOffer, Target: target, Payload: payload})
}

// SendAnswer sends an SDP answer to target.
func (c *Client) SendAnswer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeAnswer, Target: target, Payload: payload})
}

// SendICECandidate sends an ICE candidate to target.
func (c *Client) SendICECandidate(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeICECandidate, Target: target, Payload: payload})
}

// RequestCameraList asks the server for available cameras.
func (c *Client) RequestCameraList() error {
	return c.send(Message{Type: TypeListCameras})
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	msg.Timestamp = time.Now().UnixMilli()
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.Close()
	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn("signaling read error", "error", err)
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeRegistered:
		if c.handler.OnRegistered != nil {
			c.handler.OnRegistered()
		}
	case TypeOffer:
		if c.handler.OnOffer != nil {
			c.handler.OnOffer(msg.From, msg.Payload)
		}
	case TypeAnswer:
		if c.handler.OnAnswer != nil {
			c.handler.OnAnswer(msg.From, msg.Payload)
		}
	case TypeICECandidate:
		if c.handler.OnICECandidate != nil {
			c.handler.OnICECandidate(msg.From, msg.Payload)
		}
	case TypeCameras, TypeCamerasUpdated:
		if c.handler.OnCamerasUpdated != nil {
			c.handler.OnCamerasUpdated(msg.List)
		}
	case TypeCameraDisconnected:
		if c.handler.OnCameraDisconnected != nil {
			c.handler.OnCameraDisconnected(msg.CameraID)
		}
	case TypeError:
		if c.handler.OnError != nil {
			c.handler.OnError(msg.Msg)
		}
	case TypePong:
		// heartbeat response, nothing to do
	default:
		c.log.Debug("unknown signaling message", "type", msg.Type)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.send(Message{Type: TypePing})
		}
	}
}
