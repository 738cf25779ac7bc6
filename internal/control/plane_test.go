package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseResume(t *testing.T) {
	p := New()

	assert.False(t, p.IsPaused())
	p.Pause()
	assert.True(t, p.IsPaused())
	p.Pause() // idempotent
	assert.True(t, p.IsPaused())

	p.Resume()
	assert.False(t, p.IsPaused())
	p.Resume() // idempotent
	assert.False(t, p.IsPaused())
}

func TestWaitIfPausedReturnsImmediatelyWhenRunning(t *testing.T) {
	p := New()
	require.NoError(t, p.WaitIfPaused(context.Background()))
}

func TestWaitIfPausedBlocksUntilResume(t *testing.T) {
	p := New()
	p.Pause()

	released := make(chan error, 1)
	go func() {
		released <- p.WaitIfPaused(context.Background())
	}()

	select {
	case <-released:
		t.Fatal("waiter released while still paused")
	case <-time.After(50 * time.Millisecond):
	}

	p.Resume()
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released after resume")
	}
}

func TestWaitIfPausedHonorsContext(t *testing.T) {
	p := New()
	p.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.WaitIfPaused(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQuitWakesWaiters(t *testing.T) {
	p := New()
	p.Pause()

	released := make(chan error, 1)
	go func() {
		released <- p.WaitIfPaused(context.Background())
	}()

	p.Quit()
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released after quit")
	}
	assert.True(t, p.IsQuitting())
}
