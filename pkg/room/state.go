package room

import (
	"sync"
	"time"

	"github.com/latticechat/roomengine/pkg/events"
)

// State is one value of the room status state machine (spec.md §4.6:
// "new → connecting → connected ⇄ reconnecting → error? → closed").
type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
	StateClosed       State = "closed"
)

// stateMachine enforces the room status transitions and publishes an
// update event on every change a caller might care about.
type stateMachine struct {
	mu     sync.Mutex
	state  State
	room   string
	broker *events.Broker
}

func newStateMachine(room string, broker *events.Broker) *stateMachine {
	return &stateMachine{state: StateNew, room: room, broker: broker}
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) transition(to State, allowed func(from State) bool) {
	m.mu.Lock()
	from := m.state
	if from == StateClosed || !allowed(from) || from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()

	if m.broker != nil {
		m.broker.Publish(events.Event{Type: events.TypeUpdate, Room: m.room, Payload: to})
	}
}

// MarkConnecting fires on first swarm join.
func (m *stateMachine) MarkConnecting() {
	m.transition(StateConnecting, func(from State) bool { return from == StateNew })
}

// MarkConnected fires on the first successful peer stream, or on
// autobase becoming writable, from either connecting or reconnecting.
func (m *stateMachine) MarkConnected() {
	m.transition(StateConnected, func(from State) bool {
		return from == StateConnecting || from == StateReconnecting
	})
}

// MarkReconnecting fires on loss of every connected peer.
func (m *stateMachine) MarkReconnecting() {
	m.transition(StateReconnecting, func(from State) bool { return from == StateConnected })
}

// MarkError fires on an unrecoverable crypto or I/O failure, from any
// non-terminal state.
func (m *stateMachine) MarkError() {
	m.transition(StateError, func(State) bool { return true })
}

// MarkClosed fires on explicit close, from any state; unlike the other
// transitions it is reachable even from StateError.
func (m *stateMachine) MarkClosed() {
	m.mu.Lock()
	from := m.state
	if from == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	m.mu.Unlock()
	if m.broker != nil {
		m.broker.Publish(events.Event{Type: events.TypeUpdate, Room: m.room, Payload: StateClosed})
	}
}

// peerStatus tracks one connected peer's liveness using the same
// hysteresis update rule as the teacher's container health monitor
// (pkg/health's Status.Update), generalised from liveness-probe results
// to "did a replication stream read/write succeed".
type peerStatus struct {
	consecutiveFailures  int
	consecutiveSuccesses int
	healthy              bool
	lastSeen             time.Time
}

// healthRetries mirrors pkg/health.DefaultConfig's Retries: a peer is
// marked unhealthy only after this many consecutive failed checks, not
// the first one, so a single dropped frame doesn't flap the room's state.
const healthRetries = 3

func (s *peerStatus) update(ok bool, now time.Time) {
	s.lastSeen = now
	if ok {
		s.consecutiveSuccesses++
		s.consecutiveFailures = 0
		s.healthy = true
		return
	}
	s.consecutiveFailures++
	s.consecutiveSuccesses = 0
	if s.consecutiveFailures >= healthRetries {
		s.healthy = false
	}
}

// peerTable tracks liveness for every peer this room currently has a
// replication stream open with.
type peerTable struct {
	mu    sync.Mutex
	peers map[string]*peerStatus
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[string]*peerStatus)}
}

func (t *peerTable) connected(peerKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peerKey] = &peerStatus{healthy: true, lastSeen: time.Now()}
}

func (t *peerTable) disconnected(peerKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peerKey)
}

func (t *peerTable) markResult(peerKey string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, found := t.peers[peerKey]
	if !found {
		return
	}
	s.update(ok, time.Now())
}

func (t *peerTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}

func (t *peerTable) healthyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.peers {
		if s.healthy {
			n++
		}
	}
	return n
}
