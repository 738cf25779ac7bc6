package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-cli/flock/internal/core"
)

func TestPublishToTypedSubscriber(t *testing.T) {
	bus := New(10)
	toasts := bus.Subscribe(TypeToast)
	all := bus.Subscribe()

	bus.Publish(NewToast(core.LogLevelWarn, "careful"))
	bus.Publish(NewStateUpdated())

	toast := (<-toasts).(Toast)
	assert.Equal(t, "careful", toast.Message)
	select {
	case extra := <-toasts:
		t.Fatalf("typed subscriber received %s", extra.EventType())
	default:
	}

	assert.Equal(t, TypeToast, (<-all).EventType())
	assert.Equal(t, TypeStateUpdated, (<-all).EventType())
}

func TestBackpressureDropsOnFullBuffer(t *testing.T) {
	bus := New(1)
	slow := bus.Subscribe()

	bus.Publish(NewStateUpdated())
	bus.Publish(NewStateUpdated())
	bus.Publish(NewStateUpdated())

	assert.EqualValues(t, 2, bus.DroppedCount())
	<-slow
	select {
	case <-slow:
		t.Fatal("only one event should have been buffered")
	default:
	}
}

func TestPrioritySubscriberNeverDrops(t *testing.T) {
	bus := New(1)
	priority := bus.SubscribePriority(TypeToast)

	delivered := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			e := <-priority
			require.Equal(t, TypeToast, e.EventType())
		}
		close(delivered)
	}()

	bus.Publish(NewToast(core.LogLevelError, "one"))
	bus.Publish(NewToast(core.LogLevelError, "two"))
	bus.Publish(NewToast(core.LogLevelError, "three"))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("priority events not delivered")
	}
	assert.Zero(t, bus.DroppedCount())
}

func TestCloseShutsChannels(t *testing.T) {
	bus := New(4)
	ch := bus.Subscribe()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op, and double close is safe.
	bus.Publish(NewStateUpdated())
	bus.Close()
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := New(4)
	bus.Close()
	ch := bus.Subscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestEventConstructorsStampTimeAndType(t *testing.T) {
	id := core.NewAgentID()
	created := NewAgentCreated(id, "x", "feature/x")
	assert.Equal(t, TypeAgentCreated, created.EventType())
	assert.WithinDuration(t, time.Now(), created.Timestamp(), time.Second)

	changed := NewStatusChanged(id, core.StatusStopped, core.StatusRunning)
	assert.Equal(t, core.StatusRunning, changed.To)

	deleted := NewAgentDeleted(id, "x")
	assert.Equal(t, TypeAgentDeleted, deleted.EventType())
}
