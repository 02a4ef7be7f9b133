package source

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/campanel/internal/control"
	"github.com/junsooki/campanel/internal/decoder"
)

// loopbackLink answers open/close requests with a state message, like a
// camera host would.
type loopbackLink struct {
	mu        sync.Mutex
	onFrame   func([]byte)
	onControl func([]byte)
	sent      []control.Message
	silent    bool
}

func (l *loopbackLink) OnFrame(cb func([]byte))   { l.onFrame = cb }
func (l *loopbackLink) OnControl(cb func([]byte)) { l.onControl = cb }

func (l *loopbackLink) SendControl(data []byte) error {
	msg, err := control.Decode(data)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	silent := l.silent
	l.mu.Unlock()
	if silent {
		return nil
	}
	reply, _ := control.Encode(control.State(msg.Type == control.TypeOpen, 32, 24))
	go l.onControl(reply)
	return nil
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil))
	return buf.Bytes()
}

func newTestRemote(t *testing.T) (*Remote, *loopbackLink) {
	t.Helper()
	r := NewRemote("remote", decoder.NewJPEGDecoder(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	l := &loopbackLink{}
	r.Attach(context.Background(), l)
	return r, l
}

func TestRemoteOpenWaitsForState(t *testing.T) {
	r, l := newTestRemote(t)
	listener := &recordingListener{}
	r.AddListener(listener)

	require.NoError(t, r.Open(context.Background()))
	assert.True(t, r.IsOpen())
	assert.Equal(t, Size{Width: 32, Height: 24}, r.ViewSize())
	assert.Equal(t, []control.Message{{Type: control.TypeOpen}}, l.sent)

	require.NoError(t, r.Close(context.Background()))
	assert.False(t, r.IsOpen())
	assert.Equal(t, []EventType{EventOpened, EventClosed}, listener.seen())
}

func TestRemoteOpenHonoursContext(t *testing.T) {
	r, l := newTestRemote(t)
	l.silent = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Open(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, r.IsOpen())
}

func TestRemoteNotConnected(t *testing.T) {
	r := NewRemote("remote", decoder.NewJPEGDecoder(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, r.Open(context.Background()), ErrNotConnected)
}

func TestRemoteFramesOnlyWhileOpen(t *testing.T) {
	r, l := newTestRemote(t)
	data := jpegBytes(t)

	l.onFrame(data)
	assert.Nil(t, r.LatestFrame())

	require.NoError(t, r.HandleControl(context.Background(), control.State(true, 32, 24)))
	l.onFrame(data)
	f := r.LatestFrame()
	require.NotNil(t, f)
	assert.Equal(t, 32, f.Width())
	assert.Equal(t, uint64(1), f.Seq)

	l.onFrame([]byte("garbage"))
	assert.Same(t, f, r.LatestFrame())
}

func TestRemoteDetachCloses(t *testing.T) {
	r, _ := newTestRemote(t)
	require.NoError(t, r.Open(context.Background()))

	require.NoError(t, r.Detach(context.Background()))
	assert.False(t, r.IsOpen())
	assert.ErrorIs(t, r.Open(context.Background()), ErrNotConnected)
}
