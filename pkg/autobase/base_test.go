package autobase

import (
	"context"
	"crypto/ed25519"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticechat/roomengine/pkg/blockstore"
	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/view"
)

func newTestBase(t *testing.T) (*Base, *view.View, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	v, err := view.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	router := dispatch.NewRouter()
	RegisterHandlers(router)

	base := New(v, router, nil)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	store, err := blockstore.Open(t.TempDir(), pub, priv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base.AddCore(store, true)

	// Root writer-core admission is a bootstrap fact, not a linearised
	// record (spec.md §4.2: "given a bootstrap block store, the root
	// writer-core"); prime the view directly before any append.
	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutWriter(pub))
	require.NoError(t, b.Commit())

	return base, v, pub, priv
}

func TestCreateSendQuery(t *testing.T) {
	base, v, _, _ := newTestBase(t)

	_, err := base.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{ID: "room-1", Name: "general"})
	require.NoError(t, err)

	_, err = base.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "m1", Content: "hello", Sender: "alice", Timestamp: 1000})
	require.NoError(t, err)
	_, err = base.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "m2", Content: "world", Sender: "alice", Timestamp: 2000})
	require.NoError(t, err)

	msgs, err := v.GetMessages(view.MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "world", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	count, err := v.GetMessageCount("room-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestAppendOrderingPreservedForOneWriter(t *testing.T) {
	base, v, _, _ := newTestBase(t)

	_, err := base.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{ID: "room-1"})
	require.NoError(t, err)
	_, err = base.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "a", Timestamp: 1})
	require.NoError(t, err)
	_, err = base.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "b", Timestamp: 2})
	require.NoError(t, err)

	msgs, err := v.GetMessages(view.MessageQuery{Limit: 10, Reverse: false})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
}

func TestWriterAuthorityGatesRecordsUntilAdmitted(t *testing.T) {
	base, v, localPub, _ := newTestBase(t)

	_, err := base.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{ID: "room-1"})
	require.NoError(t, err)

	otherPub, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherStore, err := blockstore.Open(t.TempDir(), otherPub, otherPriv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = otherStore.Close() })
	base.AddCore(otherStore, false)

	// Craft and append a record directly to the not-yet-admitted writer's
	// own core; its OnBlock hook fires linearisation automatically.
	record, err := dispatch.Encode(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "rogue", Timestamp: 5})
	require.NoError(t, err)
	raw, err := encodeEnvelope(envelope{Record: record})
	require.NoError(t, err)
	_, err = otherStore.Append(raw)
	require.NoError(t, err)

	_, ok, err := v.GetMessage("rogue")
	require.NoError(t, err)
	assert.False(t, ok, "record from a non-writer key must never change the view")

	// Admit the writer.
	_, err = base.Append(dispatch.NameAddWriter, dispatch.AddWriterPayload{Key: otherPub})
	require.NoError(t, err)

	localHex := writerKeyHex(localPub)
	localLen := uint64(2) // set-metadata + add-writer
	record2, err := dispatch.Encode(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "legit", Timestamp: 6})
	require.NoError(t, err)
	raw2, err := encodeEnvelope(envelope{Clock: map[string]uint64{localHex: localLen}, Record: record2})
	require.NoError(t, err)
	_, err = otherStore.Append(raw2)
	require.NoError(t, err)

	_, ok, err = v.GetMessage("legit")
	require.NoError(t, err)
	assert.True(t, ok, "a record from an admitted writer must take effect")
}

func TestReplayOnReplicaReproducesSameView(t *testing.T) {
	base1, v1, pub, _ := newTestBase(t)
	_, err := base1.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{ID: "room-1"})
	require.NoError(t, err)
	_, err = base1.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "m1", Timestamp: 1})
	require.NoError(t, err)
	_, err = base1.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{ID: "m2", Timestamp: 2})
	require.NoError(t, err)

	// Replicate the writer-core to a fresh read-only store and fold it
	// through an independent Base/View pair, confirming the view is a
	// pure function of the linearised log (spec.md §8 property 1).
	localStore := base1.cores[base1.local]

	replica, err := blockstore.Open(t.TempDir(), pub, nil)
	require.NoError(t, err)
	defer replica.Close()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		_ = localStore.Replicate(context.Background(), server)
		close(done)
	}()

	v2, err := view.Open(t.TempDir())
	require.NoError(t, err)
	defer v2.Close()
	router2 := dispatch.NewRouter()
	RegisterHandlers(router2)
	base2 := New(v2, router2, nil)
	b, err := v2.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutWriter(pub))
	require.NoError(t, b.Commit())
	base2.AddCore(replica, false)

	replicateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = replica.Replicate(replicateCtx, client) }()

	deadline := time.Now().Add(2 * time.Second)
	for replica.Length() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, uint64(3), replica.Length())
	require.NoError(t, base2.Linearise())

	msgs1, err := v1.GetMessages(view.MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	msgs2, err := v2.GetMessages(view.MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, msgs1, msgs2)

	cancel()
	<-done
}
