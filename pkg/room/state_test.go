package room

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latticechat/roomengine/pkg/events"
)

func TestStateMachineFollowsTheSpecifiedLifecycle(t *testing.T) {
	broker := events.NewBroker()
	defer broker.Close()
	m := newStateMachine("room-1", broker)

	assert.Equal(t, StateNew, m.Current())

	m.MarkConnected() // no-op: connecting->connected only, not new->connected
	assert.Equal(t, StateNew, m.Current())

	m.MarkConnecting()
	assert.Equal(t, StateConnecting, m.Current())

	m.MarkConnected()
	assert.Equal(t, StateConnected, m.Current())

	m.MarkReconnecting()
	assert.Equal(t, StateReconnecting, m.Current())

	m.MarkConnected()
	assert.Equal(t, StateConnected, m.Current())

	m.MarkClosed()
	assert.Equal(t, StateClosed, m.Current())
}

func TestStateMachineClosedIsTerminal(t *testing.T) {
	m := newStateMachine("room-1", nil)
	m.MarkClosed()
	m.MarkConnecting()
	m.MarkConnected()
	assert.Equal(t, StateClosed, m.Current())
}

func TestStateMachineErrorReachableFromAnyNonTerminalState(t *testing.T) {
	m := newStateMachine("room-1", nil)
	m.MarkError()
	assert.Equal(t, StateError, m.Current())

	m.MarkClosed()
	assert.Equal(t, StateClosed, m.Current())
}

func TestPeerStatusRequiresConsecutiveFailuresBeforeUnhealthy(t *testing.T) {
	table := newPeerTable()
	table.connected("peer-a")

	table.markResult("peer-a", false)
	table.markResult("peer-a", false)
	assert.Equal(t, 1, table.healthyCount(), "fewer than healthRetries failures must not flip healthy")

	table.markResult("peer-a", false)
	assert.Equal(t, 0, table.healthyCount())

	table.markResult("peer-a", true)
	assert.Equal(t, 1, table.healthyCount(), "a single success immediately restores healthy")
}

func TestPeerTableCountReflectsConnectAndDisconnect(t *testing.T) {
	table := newPeerTable()
	assert.Equal(t, 0, table.count())

	table.connected("peer-a")
	table.connected("peer-b")
	assert.Equal(t, 2, table.count())

	table.disconnected("peer-a")
	assert.Equal(t, 1, table.count())
}
