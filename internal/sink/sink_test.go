package sink

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/campanel/internal/encoder"
	"github.com/junsooki/campanel/internal/source"
)

type slotProvider struct {
	f atomic.Pointer[source.Frame]
}

func (p *slotProvider) Frame() *source.Frame { return p.f.Load() }

type recorder struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (r *recorder) SendFrame(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, data)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// queuedRecorder also reports a send queue, like a data channel does.
type queuedRecorder struct {
	recorder
	queued atomic.Uint64
}

func (r *queuedRecorder) FramesBuffered() uint64 { return r.queued.Load() }

// noisy returns an image that JPEG cannot squeeze much.
func noisy(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	x := uint32(2463534242)
	for i := range img.Pix {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		img.Pix[i] = byte(x)
	}
	return img
}

func frame(seq uint64) *source.Frame {
	return &source.Frame{Image: image.NewRGBA(image.Rect(0, 0, 32, 24)), Seq: seq}
}

func startSink(t *testing.T, maxBitrate int) (*Sink, *slotProvider, *recorder) {
	t.Helper()
	s := New(encoder.NewJPEGEncoder(70), maxBitrate, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p := &slotProvider{}
	r := &recorder{}
	s.Bind(p)
	s.SetReceiver(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return s, p, r
}

func TestSinkSendsCurrentFrame(t *testing.T) {
	s, p, r := startSink(t, 0)
	p.f.Store(frame(1))

	s.RequestRender()
	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Sent)
	assert.NotZero(t, st.Bytes)
}

func TestSinkSkipsMissingAndRepeatedFrames(t *testing.T) {
	s, p, r := startSink(t, 0)

	s.RequestRender()
	require.Eventually(t, func() bool { return s.Stats().Skipped == 1 }, time.Second, 5*time.Millisecond)

	p.f.Store(frame(7))
	s.RequestRender()
	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)

	s.RequestRender()
	require.Eventually(t, func() bool { return s.Stats().Skipped == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, r.count())

	// A new receiver gets the current frame even if it was already sent.
	r2 := &recorder{}
	s.SetReceiver(r2)
	s.RequestRender()
	require.Eventually(t, func() bool { return r2.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSinkThrottlesOverBitrate(t *testing.T) {
	// 64 bits per second refills 8 bytes a second; a JPEG needs far longer.
	s, p, r := startSink(t, 64)
	p.f.Store(frame(1))

	s.RequestRender()
	require.Eventually(t, func() bool { return s.Stats().Throttled == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.count())
}

func TestSinkSendsFrameLargerThanOneSecondOfBudget(t *testing.T) {
	img := noisy(160, 120)
	data, err := encoder.NewJPEGEncoder(70).Encode(img)
	require.NoError(t, err)

	// One second of budget covers three quarters of the frame, so the frame
	// must go out once the missing quarter has accrued.
	s, p, r := startSink(t, len(data)*8*3/4)
	p.f.Store(&source.Frame{Image: img, Seq: 1})

	require.Eventually(t, func() bool {
		s.RequestRender()
		return r.count() == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint64(len(data)), s.Stats().Bytes)
}

func TestSinkDropsFramesWhileChannelBacklogged(t *testing.T) {
	s, p, _ := startSink(t, 0)
	q := &queuedRecorder{}
	q.queued.Store(MaxBacklog + 1)
	s.SetReceiver(q)
	p.f.Store(frame(1))

	s.RequestRender()
	require.Eventually(t, func() bool { return s.Stats().Backlogged == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, q.count())

	q.queued.Store(0)
	s.RequestRender()
	require.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSinkCountsSendFailures(t *testing.T) {
	s, p, r := startSink(t, 0)
	r.err = errors.New("channel closed")
	p.f.Store(frame(1))

	s.RequestRender()
	require.Eventually(t, func() bool { return s.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Stats().Sent)
}

func TestRequestRenderNeverBlocks(t *testing.T) {
	s := New(encoder.NewJPEGEncoder(70), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.RequestRender()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RequestRender blocked without a running sink")
	}
}
