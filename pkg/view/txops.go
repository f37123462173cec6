package view

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/latticechat/roomengine/pkg/rerr"
)

var (
	bucketWriters        = []byte("writer")
	bucketInvites        = []byte("invite")
	bucketRooms          = []byte("rooms")
	bucketMessages       = []byte("messages")
	bucketMessageTSIndex = []byte("messages-by-timestamp")
	bucketMetadata       = []byte("metadata")
	bucketDriveMetadata  = []byte("drive-metadata")

	allBuckets = [][]byte{
		bucketWriters,
		bucketInvites,
		bucketRooms,
		bucketMessages,
		bucketMessageTSIndex,
		bucketMetadata,
		bucketDriveMetadata,
	}
)

func putJSON(tx *bolt.Tx, bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return rerr.Fatal("view.putJSON", err)
	}
	return tx.Bucket(bucket).Put(key, data)
}

func getJSON(tx *bolt.Tx, bucket, key []byte, dst interface{}) (bool, error) {
	data := tx.Bucket(bucket).Get(key)
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, rerr.Fatal("view.getJSON", err)
	}
	return true, nil
}

func putWriterTx(tx *bolt.Tx, w Writer) error {
	return putJSON(tx, bucketWriters, w.Key, w)
}

func getWriterTx(tx *bolt.Tx, key []byte) (Writer, bool, error) {
	var w Writer
	ok, err := getJSON(tx, bucketWriters, key, &w)
	return w, ok, err
}

func isWriterTx(tx *bolt.Tx, key []byte) (bool, error) {
	w, ok, err := getWriterTx(tx, key)
	if err != nil || !ok {
		return false, err
	}
	return !w.Removed, nil
}

func listWritersTx(tx *bolt.Tx) ([]Writer, error) {
	var out []Writer
	err := tx.Bucket(bucketWriters).ForEach(func(k, v []byte) error {
		var w Writer
		if err := json.Unmarshal(v, &w); err != nil {
			return rerr.Fatal("view.listWritersTx", err)
		}
		out = append(out, w)
		return nil
	})
	return out, err
}

func putInviteTx(tx *bolt.Tx, inv Invite) error {
	return putJSON(tx, bucketInvites, inv.ID, inv)
}

func getInviteTx(tx *bolt.Tx, id []byte) (Invite, bool, error) {
	var inv Invite
	ok, err := getJSON(tx, bucketInvites, id, &inv)
	return inv, ok, err
}

// consumeInviteTx marks id consumed, rejecting a second consumption
// attempt (spec.md §7: "double-consume invite" is Unauthorised).
func consumeInviteTx(tx *bolt.Tx, id []byte) error {
	inv, ok, err := getInviteTx(tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.Unauthorised("view.consumeInviteTx", fmt.Errorf("unknown invite"))
	}
	if inv.Consumed {
		return rerr.Unauthorised("view.consumeInviteTx", fmt.Errorf("invite already consumed"))
	}
	inv.Consumed = true
	return putInviteTx(tx, inv)
}

func deleteInviteTx(tx *bolt.Tx, id []byte) error {
	return tx.Bucket(bucketInvites).Delete(id)
}

func putRoomTx(tx *bolt.Tx, r Room) error {
	return putJSON(tx, bucketRooms, []byte(r.ID), r)
}

func getRoomTx(tx *bolt.Tx, id string) (Room, bool, error) {
	var r Room
	ok, err := getJSON(tx, bucketRooms, []byte(id), &r)
	return r, ok, err
}

func putMessageTx(tx *bolt.Tx, m Message) error {
	if err := putJSON(tx, bucketMessages, []byte(m.ID), m); err != nil {
		return err
	}
	return tx.Bucket(bucketMessageTSIndex).Put(indexKey(m.Timestamp, m.ID), []byte(m.ID))
}

func getMessageTx(tx *bolt.Tx, id string) (Message, bool, error) {
	var m Message
	ok, err := getJSON(tx, bucketMessages, []byte(id), &m)
	return m, ok, err
}

// tombstoneMessageTx marks id deleted without removing its index entry;
// getMessages filters tombstoned ids out at read time.
func tombstoneMessageTx(tx *bolt.Tx, id string) error {
	m, ok, err := getMessageTx(tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.Invalid("view.tombstoneMessageTx", fmt.Errorf("unknown message %q", id))
	}
	m.Tombstoned = true
	return putMessageTx(tx, m)
}

func putMetadataTx(tx *bolt.Tx, key, value string) error {
	return tx.Bucket(bucketMetadata).Put([]byte(key), []byte(value))
}

func getMetadataTx(tx *bolt.Tx, key string) (string, bool) {
	v := tx.Bucket(bucketMetadata).Get([]byte(key))
	if v == nil {
		return "", false
	}
	return string(v), true
}

func putDriveMetadataTx(tx *bolt.Tx, d DriveMetadata) error {
	return putJSON(tx, bucketDriveMetadata, []byte(d.ID), d)
}

func getDriveMetadataTx(tx *bolt.Tx, id string) (DriveMetadata, bool, error) {
	var d DriveMetadata
	ok, err := getJSON(tx, bucketDriveMetadata, []byte(id), &d)
	return d, ok, err
}

func listDriveMetadataTx(tx *bolt.Tx) ([]DriveMetadata, error) {
	var out []DriveMetadata
	err := tx.Bucket(bucketDriveMetadata).ForEach(func(k, v []byte) error {
		var d DriveMetadata
		if err := json.Unmarshal(v, &d); err != nil {
			return rerr.Fatal("view.listDriveMetadataTx", err)
		}
		if !d.Deleted {
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// indexKey encodes the (timestamp, id) secondary-index key so that
// lexicographic byte order matches (timestamp, id) order: an 8-byte
// big-endian timestamp (message timestamps are non-negative ms-epoch
// values, so no sign-bit flip is needed) followed by the raw id bytes.
func indexKey(ts int64, id string) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key[:8], uint64(ts))
	copy(key[8:], id)
	return key
}

func indexKeyTimestamp(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[:8]))
}
