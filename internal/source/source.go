package source

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned by a Remote that has no control channel.
	ErrNotConnected = errors.New("source not connected")
)

// Source is a camera-like device with an explicit open/closed state.
type Source interface {
	Name() string
	IsOpen() bool
	// LatestFrame returns the most recent frame or nil if none is available.
	LatestFrame() *Frame
	ViewSize() Size
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	AddListener(l Listener)
	RemoveListener(l Listener) bool
}

// EventType identifies a lifecycle transition.
type EventType string

const (
	EventOpened EventType = "opened"
	EventClosed EventType = "closed"
)

// Event describes a lifecycle transition of a Source.
type Event struct {
	Type   EventType
	Source string
	Time   time.Time
}

// Listener is notified synchronously about lifecycle transitions. Errors
// returned by listeners are joined into the error of the Open or Close call
// that caused the transition.
type Listener interface {
	SourceOpened(ctx context.Context, ev Event) error
	SourceClosed(ctx context.Context, ev Event) error
}
