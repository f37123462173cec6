package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(Event{Type: TypeNewMessage, Room: "room-1"})

	select {
	case ev := <-s1:
		assert.Equal(t, TypeNewMessage, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive the event")
	}
	select {
	case ev := <-s2:
		assert.Equal(t, TypeNewMessage, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive the event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	s := b.Subscribe()
	b.Unsubscribe(s)

	_, ok := <-s
	assert.False(t, ok)

	// Unsubscribing twice must not panic.
	b.Unsubscribe(s)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBroker()
	s := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(Event{Type: TypeUpdate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a saturated subscriber")
	}
	require.NotNil(t, s)
}

func TestCloseUnsubscribesEveryone(t *testing.T) {
	b := NewBroker()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Close()

	_, ok1 := <-s1
	_, ok2 := <-s2
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.Equal(t, 0, len(b.subscribers))
}
