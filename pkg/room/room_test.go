package room

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticechat/roomengine/pkg/config"
	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/identity"
	"github.com/latticechat/roomengine/pkg/view"
)

// newTestRoom builds a room's full in-process stack the way Create does,
// minus startNetworking: these tests exercise the façade's local
// operations, not DHT discovery or Noise handshakes (covered by
// pkg/swarm's own tests).
func newTestRoom(t *testing.T, name string) *Room {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	id.SetUsername("alice")

	cfg := config.Config{CorestoreDir: t.TempDir()}.WithDefaults()
	roomKey := id.PublicKey()
	encKey := make([]byte, 32)
	roomID := uuid.New().String()

	r, err := newBareRoom(cfg, id, roomKey, encKey, roomID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, err = r.base.Append(dispatch.NameAddWriter, dispatch.AddWriterPayload{Key: roomKey})
	require.NoError(t, err)
	_, err = r.base.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{
		ID: roomID, Name: name, CreatedAt: time.Now().UnixMilli(),
	})
	require.NoError(t, err)

	return r
}

func TestCreateSendMessageAndQuery(t *testing.T) {
	r := newTestRoom(t, "general")

	msg, err := r.SendMessage("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "alice", msg.Sender)

	_, err = r.SendMessage("world")
	require.NoError(t, err)

	msgs, err := r.GetMessages(view.MessageQuery{Limit: 10, Reverse: true})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "world", msgs[0].Content)

	count, err := r.GetMessageCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestDeleteMessageTombstonesAndDecrementsCount(t *testing.T) {
	r := newTestRoom(t, "general")

	msg, err := r.SendMessage("hello")
	require.NoError(t, err)

	require.NoError(t, r.DeleteMessage(msg.ID))

	msgs, err := r.GetMessages(view.MessageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	count, err := r.GetMessageCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestGetRoomInfoReflectsSetMetadata(t *testing.T) {
	r := newTestRoom(t, "general")

	info, err := r.GetRoomInfo()
	require.NoError(t, err)
	assert.Equal(t, "general", info.Name)
}

func TestAddWriterAndRemoveWriter(t *testing.T) {
	r := newTestRoom(t, "general")

	other, err := identity.Generate()
	require.NoError(t, err)

	require.NoError(t, r.AddWriter(other.PublicKey()))
	writers, err := r.GetWriters()
	require.NoError(t, err)
	assert.Len(t, writers, 2)
	assert.Equal(t, 2, r.ActiveWriters())

	require.NoError(t, r.RemoveWriter(other.PublicKey()))
	assert.Equal(t, 1, r.ActiveWriters())
	assert.Equal(t, 1, r.RemovedWriters())
}

func TestUploadAndDownloadFile(t *testing.T) {
	r := newTestRoom(t, "general")

	meta, err := r.UploadFile("/notes.txt", []byte("hello room"))
	require.NoError(t, err)
	assert.Equal(t, "/notes.txt", meta.Path)

	data, err := r.DownloadFile("/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello room", string(data))

	require.NoError(t, r.DeleteFile("/notes.txt"))
	exists, err := r.drive.Exists("/notes.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReplicationBacklogReflectsUnlinearisedRecords(t *testing.T) {
	r := newTestRoom(t, "general")

	backlog := r.ReplicationBacklog()
	for _, n := range backlog {
		assert.Equal(t, 0, n, "every append also triggers linearisation, so backlog should be caught up")
	}
}
