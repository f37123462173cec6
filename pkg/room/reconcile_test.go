package room

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticechat/roomengine/pkg/identity"
)

func TestReconcileAdoptsAWriterKeyNotYetKnownToAutobase(t *testing.T) {
	r := newTestRoom(t, "general")

	other, err := identity.Generate()
	require.NoError(t, err)

	require.NoError(t, r.AddWriter(other.PublicKey()))

	// AddWriter's own linearisation pass already runs synchronously
	// (autobase.Base.Append calls Linearise before returning), but it
	// only updates the view's writer collection — it never opens a
	// block store for a key this process has no local core for yet.
	otherHex := hex.EncodeToString(other.PublicKey())
	_, known := r.base.Store(otherHex)
	assert.False(t, known, "precondition: the new writer's core must not already be registered")

	r.reconcile()

	_, known = r.base.Store(otherHex)
	assert.True(t, known, "reconcile should have opened a read-only replica for the new writer key")
}

func TestReconcileIsIdempotentForAnAlreadyKnownWriter(t *testing.T) {
	r := newTestRoom(t, "general")

	r.reconcile()
	r.reconcile()

	assert.Len(t, r.base.Writers(), 1)
}
