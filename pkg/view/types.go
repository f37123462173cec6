package view

// Writer is a record in the writer collection: an ed25519 public key
// authorised to have its append-log records accepted by apply.
//
// Removal is prospective only (spec.md §9 Open Questions): prior records
// from a removed key remain part of the view forever; Removed only gates
// records linearised after the remove-writer record.
type Writer struct {
	Key     []byte `json:"key"`
	Removed bool   `json:"removed"`
}

// Invite is a record in the invite collection: a signed capability
// binding an invite ID to the room, issued once by createInvite and
// consumed at most once by a pairing candidate.
type Invite struct {
	ID        []byte `json:"id"`
	Invite    []byte `json:"invite"`
	PublicKey []byte `json:"public_key"`
	Expires   int64  `json:"expires"` // ms epoch, 0 = never
	Consumed  bool   `json:"consumed"`
}

// Room is a record in the rooms collection: the room's own descriptor,
// set by set-metadata (dispatch.SetMetadataPayload).
type Room struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedAt    int64  `json:"created_at"`
	MessageCount uint64 `json:"message_count"`
	DriveKey     []byte `json:"drive_key"`
}

// Message is a record in the messages collection. Tombstoned messages
// stay in the collection (the log entry that created them is immutable)
// but are hidden from getMessages (spec.md §3: "deletion inserts a
// tombstone; view may hide tombstoned IDs").
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	PublicKey []byte `json:"public_key"`
	Timestamp int64  `json:"timestamp"`
	System    bool   `json:"system"`

	Tombstoned bool `json:"tombstoned"`
}

// DriveMetadata is a record in the drive-metadata collection, describing
// one blob-store entry's view-visible metadata.
type DriveMetadata struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	BlobID    []byte `json:"blob_id"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`

	Deleted bool `json:"deleted"`
}
