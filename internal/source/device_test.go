package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu     sync.Mutex
	events []EventType
	err    error
}

func (l *recordingListener) SourceOpened(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
	return l.err
}

func (l *recordingListener) SourceClosed(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
	return l.err
}

func (l *recordingListener) seen() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventType(nil), l.events...)
}

func TestDeviceTransitionsNotifyOnce(t *testing.T) {
	ctx := context.Background()
	d := NewDevice("cam", Size{Width: 320, Height: 240})
	l := &recordingListener{}
	d.AddListener(l)
	d.AddListener(l)

	require.NoError(t, d.Transition(ctx, true, nil))
	require.NoError(t, d.Transition(ctx, true, nil))
	assert.True(t, d.IsOpen())

	require.NoError(t, d.Transition(ctx, false, nil))
	require.NoError(t, d.Transition(ctx, false, nil))
	assert.False(t, d.IsOpen())

	assert.Equal(t, []EventType{EventOpened, EventClosed}, l.seen())
}

func TestDeviceOpenHookFailureKeepsClosed(t *testing.T) {
	d := NewDevice("cam", Size{Width: 320, Height: 240})
	l := &recordingListener{}
	d.AddListener(l)

	boom := errors.New("no device")
	err := d.Transition(context.Background(), true, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, d.IsOpen())
	assert.Empty(t, l.seen())
}

func TestDeviceJoinsListenerErrors(t *testing.T) {
	ctx := context.Background()
	d := NewDevice("cam", Size{})
	errA, errB := errors.New("a"), errors.New("b")
	a, b := &recordingListener{err: errA}, &recordingListener{err: errB}
	d.AddListener(a)
	d.AddListener(b)

	err := d.Transition(ctx, true, nil)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, d.IsOpen(), "listener errors do not undo the transition")
}

func TestDeviceCloseLowersFlagBeforeHook(t *testing.T) {
	ctx := context.Background()
	d := NewDevice("cam", Size{})
	require.NoError(t, d.Transition(ctx, true, nil))

	var openDuringHook bool
	require.NoError(t, d.Transition(ctx, false, func(context.Context) error {
		openDuringHook = d.IsOpen()
		return nil
	}))
	assert.False(t, openDuringHook)
}

func TestDeviceRemoveListener(t *testing.T) {
	d := NewDevice("cam", Size{})
	l := &recordingListener{}
	d.AddListener(l)
	assert.True(t, d.RemoveListener(l))
	assert.False(t, d.RemoveListener(l))

	require.NoError(t, d.Transition(context.Background(), true, nil))
	assert.Empty(t, l.seen())
}

func TestPatternCameraProducesFramesWhileOpen(t *testing.T) {
	ctx := context.Background()
	c, err := NewPatternCamera("pattern", Size{Width: 64, Height: 48}, 60)
	require.NoError(t, err)
	assert.Nil(t, c.LatestFrame())

	require.NoError(t, c.Open(ctx))
	require.Eventually(t, func() bool { return c.LatestFrame() != nil }, time.Second, 5*time.Millisecond)
	f := c.LatestFrame()
	assert.Equal(t, 64, f.Width())
	assert.Equal(t, 48, f.Height())

	last := f.Seq
	require.NoError(t, c.Close(ctx))
	assert.Nil(t, c.LatestFrame())
	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, c.LatestFrame(), "closed camera kept producing")

	require.NoError(t, c.Open(ctx))
	require.Eventually(t, func() bool {
		f := c.LatestFrame()
		return f != nil && f.Seq > last
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close(ctx))
}

func TestDeviceCloseDropsLatestFrame(t *testing.T) {
	ctx := context.Background()
	d := NewDevice("cam", Size{Width: 4, Height: 4})
	require.NoError(t, d.Transition(ctx, true, nil))
	d.PutFrame(&Frame{Seq: 7})

	var duringHook *Frame
	require.NoError(t, d.Transition(ctx, false, func(context.Context) error {
		duringHook = d.LatestFrame()
		return nil
	}))
	assert.NotNil(t, duringHook)
	assert.Nil(t, d.LatestFrame())

	require.NoError(t, d.Transition(ctx, true, nil))
	assert.Nil(t, d.LatestFrame(), "reopened device served the previous session's frame")
}

func TestNewPatternCameraValidates(t *testing.T) {
	_, err := NewPatternCamera("p", Size{Width: 64, Height: 48}, 0)
	assert.Error(t, err)
	_, err = NewPatternCamera("p", Size{Width: 64, Height: 48}, 61)
	assert.Error(t, err)
	_, err = NewPatternCamera("p", Size{}, 30)
	assert.Error(t, err)
}

func TestRenderPatternScrolls(t *testing.T) {
	size := Size{Width: 140, Height: 60}
	now := time.Now()
	a := RenderPattern(size, 1, now)
	b := RenderPattern(size, 2, now)
	assert.Equal(t, size.Width, a.Bounds().Dx())
	assert.Equal(t, size.Height, a.Bounds().Dy())

	// Bottom row is free of the label; shifting by one moves a bar edge.
	y := size.Height - 1
	differs := false
	for x := 0; x < size.Width; x++ {
		if a.RGBAAt(x, y) != b.RGBAAt(x, y) {
			differs = true
			break
		}
	}
	assert.True(t, differs)
}

func TestFrameNilSafe(t *testing.T) {
	var f *Frame
	assert.Zero(t, f.Width())
	assert.Zero(t, f.Height())
	assert.True(t, Size{}.Empty())
}
