package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    Name
		payload interface{}
		dst     interface{}
	}{
		{NameAddWriter, AddWriterPayload{Key: []byte{1, 2, 3}}, &AddWriterPayload{}},
		{NameRemoveWriter, RemoveWriterPayload{Key: []byte{4, 5}}, &RemoveWriterPayload{}},
		{NameAddInvite, AddInvitePayload{ID: []byte("id"), Invite: []byte("inv"), PublicKey: []byte("pub"), Expires: 123}, &AddInvitePayload{}},
		{NameSendMessage, SendMessagePayload{ID: "m1", Content: "hi", Sender: "alice", PublicKey: []byte("pub"), Timestamp: 42, System: false}, &SendMessagePayload{}},
		{NameDeleteMessage, DeleteMessagePayload{ID: "m1"}, &DeleteMessagePayload{}},
		{NameSetMetadata, SetMetadataPayload{ID: "room", Name: "general", CreatedAt: 1, MessageCount: 9, DriveKey: []byte("drive")}, &SetMetadataPayload{}},
		{NameSetDriveKey, SetDriveKeyPayload{Key: []byte("drive")}, &SetDriveKeyPayload{}},
		{NameUpdateDriveMetadata, UpdateDriveMetadataPayload{ID: "f1", Path: "/a/b", BlobID: []byte("blob"), Size: 10, CreatedAt: 2, Deleted: true}, &UpdateDriveMetadataPayload{}},
	}

	for _, tc := range cases {
		t.Run(string(tc.name), func(t *testing.T) {
			record, err := Encode(tc.name, tc.payload)
			require.NoError(t, err)
			require.True(t, len(record) >= 2)

			name, payload, ok, err := Decode(record)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tc.name, name)

			require.NoError(t, DecodePayload(payload, tc.dst))
		})
	}
}

func TestDecodeUnknownTagIsIgnoredNotError(t *testing.T) {
	record := []byte{0xFF, Version, 0x00}
	name, payload, ok, err := Decode(record)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Nil(t, payload)
}

func TestDecodeTooShortIsInvalid(t *testing.T) {
	_, _, ok, err := Decode([]byte{0x01})
	require.Error(t, err)
	assert.False(t, ok)
}

func TestEncodeUnknownNameIsInvalid(t *testing.T) {
	_, err := Encode(Name("bogus"), struct{}{})
	require.Error(t, err)
}

func TestRouterDispatchesRegisteredHandler(t *testing.T) {
	r := NewRouter()

	var gotPayload AddWriterPayload
	called := false
	r.Register(TagAddWriter, func(ctx Context, payload []byte) error {
		called = true
		return DecodePayload(payload, &gotPayload)
	})

	record, err := Encode(NameAddWriter, AddWriterPayload{Key: []byte{9, 9}})
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(Context{WriterKey: []byte("writer")}, record))
	assert.True(t, called)
	assert.Equal(t, []byte{9, 9}, gotPayload.Key)
}

func TestRouterIgnoresUnregisteredTag(t *testing.T) {
	r := NewRouter()
	record, err := Encode(NameRemoveWriter, RemoveWriterPayload{Key: []byte{1}})
	require.NoError(t, err)

	assert.NoError(t, r.Dispatch(Context{}, record))
}

func TestRouterSwallowsHandlerError(t *testing.T) {
	r := NewRouter()
	r.Register(TagSendMessage, func(ctx Context, payload []byte) error {
		return assert.AnError
	})
	record, err := Encode(NameSendMessage, SendMessagePayload{ID: "m1"})
	require.NoError(t, err)

	assert.NoError(t, r.Dispatch(Context{}, record))
}
