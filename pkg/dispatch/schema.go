package dispatch

// Payload types, one per command tag (spec.md §4.4 table). Field order
// does not matter for wire compatibility since msgpack encodes structs as
// field-name maps; new fields may be appended to any of these structs
// without breaking older decoders, which simply see the zero value.

// AddWriterPayload admits a new writer key (tag 0).
type AddWriterPayload struct {
	Key []byte `msgpack:"key"`
}

// RemoveWriterPayload revokes a writer key (tag 1). Revocation is
// prospective only: prior records from the key remain valid (spec.md §9
// Open Questions).
type RemoveWriterPayload struct {
	Key []byte `msgpack:"key"`
}

// AddInvitePayload records a freshly issued invite capability (tag 2).
type AddInvitePayload struct {
	ID        []byte `msgpack:"id"`
	Invite    []byte `msgpack:"invite"`
	PublicKey []byte `msgpack:"public_key"`
	Expires   int64  `msgpack:"expires"` // ms epoch, 0 = never
}

// SendMessagePayload appends a chat message (tag 3).
type SendMessagePayload struct {
	ID        string `msgpack:"id"`
	Content   string `msgpack:"content"`
	Sender    string `msgpack:"sender"`
	PublicKey []byte `msgpack:"public_key"`
	Timestamp int64  `msgpack:"timestamp"` // ms epoch, supplied by the caller — apply never reads the clock
	System    bool   `msgpack:"system"`
}

// DeleteMessagePayload tombstones a message (tag 4).
type DeleteMessagePayload struct {
	ID string `msgpack:"id"`
}

// SetMetadataPayload replaces the room's metadata record (tag 5).
type SetMetadataPayload struct {
	ID           string `msgpack:"id"`
	Name         string `msgpack:"name"`
	CreatedAt    int64  `msgpack:"created_at"`
	MessageCount uint64 `msgpack:"message_count"`
	DriveKey     []byte `msgpack:"drive_key"`
}

// SetDriveKeyPayload binds the room's blob store (tag 6). Write-once: the
// apply handler rejects a second record for the same room.
type SetDriveKeyPayload struct {
	Key []byte `msgpack:"key"`
}

// UpdateDriveMetadataPayload replaces a drive metadata record (tag 7).
// del(path) is also expressed as an update-drive-metadata record, with
// Deleted set, rather than a ninth tag: the effect is still "replace
// drive-metadata{id}", it just replaces it with a tombstoned value.
type UpdateDriveMetadataPayload struct {
	ID        string `msgpack:"id"`
	Path      string `msgpack:"path"`
	BlobID    []byte `msgpack:"blob_id"`
	Size      int64  `msgpack:"size"`
	CreatedAt int64  `msgpack:"created_at"`
	Deleted   bool   `msgpack:"deleted"`
}
