package panel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseGateIdempotent(t *testing.T) {
	g := NewPauseGate()
	assert.False(t, g.Paused())

	g.Pause()
	g.Pause()
	assert.True(t, g.Paused())

	g.Resume()
	assert.False(t, g.Paused())
	g.Resume()
	assert.False(t, g.Paused())

	require.NoError(t, g.Wait(context.Background()))
}

func TestPauseGateWaitReturnsImmediatelyWhenRunning(t *testing.T) {
	g := NewPauseGate()
	done := make(chan error, 1)
	go func() { done <- g.Wait(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an open gate")
	}
}

func TestPauseGateResumeWakesAllWaiters(t *testing.T) {
	g := NewPauseGate()
	g.Pause()

	const waiters = 8
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Wait(context.Background()))
		}()
	}

	// Give the waiters time to block.
	time.Sleep(50 * time.Millisecond)
	g.Resume()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released")
	}
}

func TestPauseGateNoLostWakeup(t *testing.T) {
	g := NewPauseGate()
	for i := 0; i < 2000; i++ {
		g.Pause()
		done := make(chan error, 1)
		start := make(chan struct{})
		go func() {
			<-start
			done <- g.Wait(context.Background())
		}()
		go func() {
			<-start
			g.Resume()
		}()
		close(start)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatalf("iteration %d: waiter never woke", i)
		}
	}
}

func TestPauseGateWaitCancelled(t *testing.T) {
	g := NewPauseGate()
	g.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait ignored cancellation")
	}
	assert.True(t, g.Paused())
}
