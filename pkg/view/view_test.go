package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestView(t *testing.T) *View {
	t.Helper()
	v, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func ptr(i int64) *int64 { return &i }

func TestWriterAdmissionAndRemoval(t *testing.T) {
	v := newTestView(t)
	key := []byte("writer-1")

	ok, err := v.IsWriter(key)
	require.NoError(t, err)
	assert.False(t, ok)

	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutWriter(key))
	require.NoError(t, b.Commit())

	ok, err = v.IsWriter(key)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err = v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.RemoveWriter(key))
	require.NoError(t, b.Commit())

	ok, err = v.IsWriter(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInviteDoubleConsumeRejected(t *testing.T) {
	v := newTestView(t)
	inv := Invite{ID: []byte("inv-1"), Invite: []byte("cap"), PublicKey: []byte("pub")}

	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutInvite(inv))
	require.NoError(t, b.ConsumeInvite(inv.ID))
	require.NoError(t, b.Commit())

	b, err = v.BeginBatch()
	require.NoError(t, err)
	err = b.ConsumeInvite(inv.ID)
	assert.Error(t, err)
	require.NoError(t, b.Rollback())

	got, ok, err := v.GetInvite(inv.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Consumed)
}

func TestMessageTombstoneHidden(t *testing.T) {
	v := newTestView(t)

	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutMessage(Message{ID: "m1", Content: "hello", Timestamp: 1000}))
	require.NoError(t, b.PutMessage(Message{ID: "m2", Content: "world", Timestamp: 2000}))
	require.NoError(t, b.Commit())

	msgs, err := v.GetMessages(MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "world", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	b, err = v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.DeleteMessage("m2"))
	require.NoError(t, b.Commit())

	msgs, err = v.GetMessages(MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestGetMessagesDefaultsAndOrdering(t *testing.T) {
	v := newTestView(t)

	b, err := v.BeginBatch()
	require.NoError(t, err)
	for i, ts := range []int64{10, 20, 30, 40, 50} {
		require.NoError(t, b.PutMessage(Message{ID: string(rune('a' + i)), Timestamp: ts}))
	}
	require.NoError(t, b.Commit())

	msgs, err := v.GetMessages(MessageQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, int64(50), msgs[0].Timestamp) // default reverse=true, newest first

	msgs, err = v.GetMessages(MessageQuery{GTE: ptr(20), LT: ptr(50), Reverse: false, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{20, 30, 40}, []int64{msgs[0].Timestamp, msgs[1].Timestamp, msgs[2].Timestamp})
}

func TestGetMessagesRespectsLimit(t *testing.T) {
	v := newTestView(t)
	b, err := v.BeginBatch()
	require.NoError(t, err)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, b.PutMessage(Message{ID: string(rune('a' + i)), Timestamp: i}))
	}
	require.NoError(t, b.Commit())

	msgs, err := v.GetMessages(MessageQuery{Limit: 2, Reverse: true})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(4), msgs[0].Timestamp)
	assert.Equal(t, int64(3), msgs[1].Timestamp)
}

func TestRoomDescriptorAndMessageCount(t *testing.T) {
	v := newTestView(t)
	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutRoom(Room{ID: "room-1", Name: "general", MessageCount: 2}))
	require.NoError(t, b.Commit())

	count, err := v.GetMessageCount("room-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestDriveMetadataRoundTrip(t *testing.T) {
	v := newTestView(t)
	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutDriveMetadata(DriveMetadata{ID: "f1", Path: "/a/b.txt", BlobID: []byte("blob-1"), Size: 10}))
	require.NoError(t, b.Commit())

	d, ok, err := v.GetDriveMetadata("f1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/a/b.txt", d.Path)

	list, err := v.ListDriveMetadata()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBatchRollbackDiscardsWrites(t *testing.T) {
	v := newTestView(t)
	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutWriter([]byte("w1")))
	require.NoError(t, b.Rollback())

	ok, err := v.IsWriter([]byte("w1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
