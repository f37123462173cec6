// Package events implements the room façade's event surface (spec.md
// §6): update, new-message, error and mistake notifications, plus the
// drive's directory watch stream, fanned out to any number of
// subscribers without overlapping with a call's own return value
// (spec.md §9 Propagation policy).
package events

import (
	"sync"
)

// Type names a room-level event kind.
type Type string

const (
	// TypeUpdate fires after a batch of linearised records commits
	// (autobase.UpdateFunc), carrying how many records were processed.
	TypeUpdate Type = "update"
	// TypeNewMessage fires once per newly visible, non-tombstoned message.
	TypeNewMessage Type = "new-message"
	// TypeError fires when a background operation (replication, apply)
	// fails in a way no in-flight caller can observe directly.
	TypeError Type = "error"
	// TypeMistake fires on a caller error that the room recovered from
	// without transitioning state, e.g. an invite that failed to verify.
	TypeMistake Type = "mistake"
	// TypeFileChange fires for every drive Put and Del, carrying the
	// affected path; it is not limited to watched directories.
	TypeFileChange Type = "file-change"
)

// Event is one notification delivered to every current subscriber.
type Event struct {
	Type    Type
	Room    string
	Payload interface{}
}

// Subscriber is a channel of events delivered to one listener.
type Subscriber chan Event

// Broker fans Publish calls out to every current Subscriber. A slow or
// stalled subscriber never blocks another, or the publisher.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[Subscriber]bool)}
}

// Subscribe registers and returns a new buffered channel of events.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 32)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe deregisters sub and closes it. Safe to call more than once.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish delivers ev to every current subscriber without blocking; a
// subscriber whose buffer is full misses the event rather than stalling
// the publisher, since events describe state already durably committed
// and a missed notification can always be recovered by re-querying.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Close unsubscribes and closes every current subscriber.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		delete(b.subscribers, sub)
		close(sub)
	}
}
