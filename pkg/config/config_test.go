package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaultsFillsZeroValuesOnly(t *testing.T) {
	c := Config{CorestoreDir: "/tmp/room", PairingTimeout: 5 * time.Second}
	out := c.WithDefaults()

	assert.Equal(t, "/tmp/room", out.CorestoreDir)
	assert.Equal(t, 5*time.Second, out.PairingTimeout, "explicit value must not be overridden")
	assert.Equal(t, 10*time.Second, out.JoinTimeout)
	assert.Equal(t, DefaultReplicationWorkers, out.ReplicationWorkers)
}

func TestWithDefaultsDoesNotMutateReceiver(t *testing.T) {
	c := Config{}
	_ = c.WithDefaults()
	assert.Equal(t, time.Duration(0), c.JoinTimeout)
}
