package view

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
)

// View is the room's schema-typed key/value store (spec.md §4.3),
// layered over a dedicated bbolt database standing in for the view-core
// block store. It is a pure fold over the linearised log: deleting the
// file and re-applying the log from empty reproduces an identical view
// (spec.md §8 property 1).
type View struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// Open opens (creating if necessary) the view-core database under dir.
func Open(dir string) (*View, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, rerr.Fatal("view.Open", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "view-core.db"), 0o600, nil)
	if err != nil {
		return nil, rerr.Fatal("view.Open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, rerr.Fatal("view.Open", err)
	}
	return &View{db: db, logger: rlog.WithComponent("view")}, nil
}

// Close releases the underlying database.
func (v *View) Close() error {
	return v.db.Close()
}

// Batch wraps one bbolt write transaction. It is the only handle through
// which apply handlers may mutate the view (spec.md §4.2); Commit flushes
// the whole linearised batch at once, Rollback discards it entirely.
type Batch struct {
	tx *bolt.Tx
}

// BeginBatch starts a new write transaction for one linearised batch.
func (v *View) BeginBatch() (*Batch, error) {
	tx, err := v.db.Begin(true)
	if err != nil {
		return nil, rerr.Fatal("view.BeginBatch", err)
	}
	return &Batch{tx: tx}, nil
}

// Commit flushes the batch's writes.
func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return rerr.Fatal("view.Batch.Commit", err)
	}
	return nil
}

// Rollback discards the batch's writes.
func (b *Batch) Rollback() error {
	return b.tx.Rollback()
}

// --- writer collection ---

// PutWriter admits or re-admits a writer key.
func (b *Batch) PutWriter(key []byte) error {
	return putWriterTx(b.tx, Writer{Key: key})
}

// RemoveWriter marks a writer key removed. Existing records from the key
// are unaffected; only subsequently linearised records are rejected
// (spec.md §9).
func (b *Batch) RemoveWriter(key []byte) error {
	w, ok, err := getWriterTx(b.tx, key)
	if err != nil {
		return err
	}
	if !ok {
		w = Writer{Key: key}
	}
	w.Removed = true
	return putWriterTx(b.tx, w)
}

// IsWriter reports whether key is currently an authorised, non-removed
// writer. Apply calls this before routing any record (spec.md §8
// property 5: "a record from a key not in the writer collection never
// changes the view").
func (b *Batch) IsWriter(key []byte) (bool, error) {
	return isWriterTx(b.tx, key)
}

// IsWriter is the read-only counterpart used outside apply, e.g. by the
// room façade to list active writers.
func (v *View) IsWriter(key []byte) (ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		ok, err = isWriterTx(tx, key)
		return err
	})
	return ok, err
}

// GetWriters returns every writer record, including removed ones.
func (v *View) GetWriters() ([]Writer, error) {
	var out []Writer
	err := v.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = listWritersTx(tx)
		return err
	})
	return out, err
}

// --- invite collection ---

// PutInvite records a freshly issued invite.
func (b *Batch) PutInvite(inv Invite) error {
	return putInviteTx(b.tx, inv)
}

// ConsumeInvite marks id consumed, rejecting a second consumption
// attempt (spec.md §7: Unauthorised on double-consume).
func (b *Batch) ConsumeInvite(id []byte) error {
	return consumeInviteTx(b.tx, id)
}

// GetInvite looks up an invite, within the current batch's view.
func (b *Batch) GetInvite(id []byte) (Invite, bool, error) {
	return getInviteTx(b.tx, id)
}

// GetInvite is the read-only counterpart used by the pairing package to
// validate an invite before attempting to join.
func (v *View) GetInvite(id []byte) (inv Invite, ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		inv, ok, err = getInviteTx(tx, id)
		return err
	})
	return inv, ok, err
}

// ConsumeInvite is the non-batch counterpart of Batch.ConsumeInvite.
// Invite admission is a race guard local to the inviter that granted it,
// not state that must carry the same value on every replica, so pairing
// calls it directly rather than routing it through apply.
func (v *View) ConsumeInvite(id []byte) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		return consumeInviteTx(tx, id)
	})
}

// DeleteInvite removes an invite record outright, letting an inviter (or
// a test, per spec.md §8 property 9's "via direct dispatch") retract an
// unconsumed invite so the next createInvite issues a fresh one.
func (v *View) DeleteInvite(id []byte) error {
	return v.db.Update(func(tx *bolt.Tx) error {
		return deleteInviteTx(tx, id)
	})
}

// --- rooms collection ---

// PutRoom replaces the room's descriptor record.
func (b *Batch) PutRoom(r Room) error {
	return putRoomTx(b.tx, r)
}

// GetRoom returns the room descriptor for id, within the batch's view.
func (b *Batch) GetRoom(id string) (Room, bool, error) {
	return getRoomTx(b.tx, id)
}

// GetRoom returns the room descriptor for id.
func (v *View) GetRoom(id string) (r Room, ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		r, ok, err = getRoomTx(tx, id)
		return err
	})
	return r, ok, err
}

// --- messages collection ---

// PutMessage appends (or, for a revised tombstone state, rewrites) a
// message and maintains its timestamp index entry.
func (b *Batch) PutMessage(m Message) error {
	return putMessageTx(b.tx, m)
}

// DeleteMessage tombstones id; it must already exist.
func (b *Batch) DeleteMessage(id string) error {
	return tombstoneMessageTx(b.tx, id)
}

// GetMessage returns a single message by id, including tombstoned ones;
// callers that want getMessages' hide-tombstoned behaviour should use
// GetMessages instead.
func (v *View) GetMessage(id string) (m Message, ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		m, ok, err = getMessageTx(tx, id)
		return err
	})
	return m, ok, err
}

// GetMessage returns a single message within the batch's view.
func (b *Batch) GetMessage(id string) (Message, bool, error) {
	return getMessageTx(b.tx, id)
}

// GetMessages answers spec.md §4.3's getMessages query against the
// timestamp index. The zero MessageQuery gets the defaults (DefaultLimit,
// newest first); any other query keeps its Reverse as given, and a
// Limit of 0 still falls back to DefaultLimit.
func (v *View) GetMessages(q MessageQuery) ([]Message, error) {
	if q == (MessageQuery{}) {
		q.Reverse = true
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	var out []Message
	err := v.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = queryMessagesTx(tx, q)
		return err
	})
	return out, err
}

// GetMessageCount returns the room's authoritative message count, kept
// in the room descriptor by apply's send-message and delete-message
// handlers rather than
// recomputed out-of-band (spec.md §9 Redesign Flags: folding the count
// into apply itself avoids the source's under-count race).
func (v *View) GetMessageCount(roomID string) (uint64, error) {
	r, ok, err := v.GetRoom(roomID)
	if err != nil || !ok {
		return 0, err
	}
	return r.MessageCount, nil
}

// --- metadata collection ---

// PutMetadata sets a scalar metadata key, e.g. the view's schema version.
func (b *Batch) PutMetadata(key, value string) error {
	return putMetadataTx(b.tx, key, value)
}

// GetMetadata reads a scalar metadata key within the batch's view.
func (b *Batch) GetMetadata(key string) (value string, ok bool) {
	return getMetadataTx(b.tx, key)
}

// GetMetadata reads a scalar metadata key.
func (v *View) GetMetadata(key string) (value string, ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		value, ok = getMetadataTx(tx, key)
		return nil
	})
	return value, ok, err
}

// --- drive-metadata collection ---

// PutDriveMetadata records or replaces a blob's view-visible metadata.
func (b *Batch) PutDriveMetadata(d DriveMetadata) error {
	return putDriveMetadataTx(b.tx, d)
}

// GetDriveMetadata returns one blob's metadata by its view id.
func (v *View) GetDriveMetadata(id string) (d DriveMetadata, ok bool, err error) {
	err = v.db.View(func(tx *bolt.Tx) error {
		d, ok, err = getDriveMetadataTx(tx, id)
		return err
	})
	return d, ok, err
}

// ListDriveMetadata returns every non-deleted blob metadata record.
func (v *View) ListDriveMetadata() ([]DriveMetadata, error) {
	var out []DriveMetadata
	err := v.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = listDriveMetadataTx(tx)
		return err
	})
	return out, err
}
