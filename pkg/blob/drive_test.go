package blob

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticechat/roomengine/pkg/autobase"
	"github.com/latticechat/roomengine/pkg/blockstore"
	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/events"
	"github.com/latticechat/roomengine/pkg/view"
)

func newTestDrive(t *testing.T) *Drive {
	t.Helper()

	v, err := view.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	router := dispatch.NewRouter()
	autobase.RegisterHandlers(router)
	base := autobase.New(v, router, nil)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	store, err := blockstore.Open(t.TempDir(), pub, priv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	base.AddCore(store, true)

	b, err := v.BeginBatch()
	require.NoError(t, err)
	require.NoError(t, b.PutWriter(pub))
	require.NoError(t, b.Commit())

	blobStore, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobStore.Close() })

	seed := 0
	idSeed := func() string {
		seed++
		return "seed" + string(rune('a'+seed))
	}

	return New("room-1", blobStore, v, base, events.NewBroker(), idSeed)
}

func TestDrivePutGetRoundTrip(t *testing.T) {
	d := newTestDrive(t)

	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	meta, err := d.Put("/docs/a.bin", data)
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.bin", meta.Path)

	got, err := d.Get(meta.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDriveListIncludesBasenameOfParentDir(t *testing.T) {
	d := newTestDrive(t)
	_, err := d.Put("/docs/a.bin", []byte("x"))
	require.NoError(t, err)

	entries, err := d.List("/docs", false, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/docs/a.bin", entries[0].Path)
}

func TestDriveUploadCollisionGetsUniqueSuffix(t *testing.T) {
	d := newTestDrive(t)

	m1, err := d.Put("/docs/a.bin", []byte("first"))
	require.NoError(t, err)
	m2, err := d.Put("/docs/a.bin", []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, m1.Path, m2.Path)
	got1, err := d.Get(m1.Path)
	require.NoError(t, err)
	got2, err := d.Get(m2.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got1)
	assert.Equal(t, []byte("second"), got2)
}

func TestDriveDelHidesEntryButKeepsBlob(t *testing.T) {
	d := newTestDrive(t)
	meta, err := d.Put("/docs/a.bin", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, d.Del(meta.Path))

	ok, err := d.Exists(meta.Path)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := idFromBytes(meta.BlobID)
	require.NoError(t, err)
	blobOk, err := d.store.Exists(id)
	require.NoError(t, err)
	assert.True(t, blobOk, "deleting a path must not remove the underlying blob")
}

func TestDriveCreateReadStreamRange(t *testing.T) {
	d := newTestDrive(t)
	meta, err := d.Put("/a.bin", []byte("0123456789"))
	require.NoError(t, err)

	got, err := d.CreateReadStream(meta.Path, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("345"), got)
}
