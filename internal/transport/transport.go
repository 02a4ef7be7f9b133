package transport

// FrameSender sends encoded video frames.
type FrameSender interface {
	SendFrame(data []byte) error
}

// BufferedFrameSender is a FrameSender that reports how many frame bytes
// are still queued for the wire.
type BufferedFrameSender interface {
	FrameSender
	FramesBuffered() uint64
}

// FrameReceiver receives encoded video frames.
type FrameReceiver interface {
	OnFrame(callback func(data []byte))
}

// ControlSender sends serialized control messages.
type ControlSender interface {
	SendControl(data []byte) error
}

// ControlReceiver receives serialized control messages.
type ControlReceiver interface {
	OnControl(callback func(data []byte))
	OnControlOpen(callback func())
}
