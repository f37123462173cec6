package blob

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	bolt "go.etcd.io/bbolt"

	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
)

var bucketBlobs = []byte("blobs")

// Store is the content-addressed half of the drive: blob bytes keyed by
// the BLAKE2b-256 hash of their content, deduplicating identical uploads
// for free (spec.md §4.5: "del removes the entry; chunks are left,
// dedup-friendly" — here one blob stands in for one chunk run).
type Store struct {
	db     *bolt.DB
	logger zerolog.Logger
}

// ID is a blob's content address.
type ID [blake2b.Size256]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// Sum computes the content address of data without storing it.
func Sum(data []byte) ID {
	return blake2b.Sum256(data)
}

// OpenStore opens (creating if absent) the blob core database under dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, rerr.Fatal("blob.OpenStore", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "blob-core.db"), 0o600, nil)
	if err != nil {
		return nil, rerr.Fatal("blob.OpenStore", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	}); err != nil {
		db.Close()
		return nil, rerr.Fatal("blob.OpenStore", err)
	}
	return &Store{db: db, logger: rlog.WithComponent("blob")}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores data and returns its content address. Re-putting identical
// bytes is a no-op write (same key, same value).
func (s *Store) Put(data []byte) (ID, error) {
	id := Sum(data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put(id[:], data)
	})
	if err != nil {
		return ID{}, rerr.Fatal("blob.Store.Put", err)
	}
	s.logger.Debug().Str("id", id.String()).Int("bytes", len(data)).Msg("stored blob")
	return id, nil
}

// Get returns the full content of id.
func (s *Store) Get(id ID) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get(id[:])
		if raw == nil {
			return rerr.Invalid("blob.Store.Get", errNotFound{id})
		}
		data = append([]byte(nil), raw...)
		return nil
	})
	return data, err
}

// GetRange returns data[start:end] for id, clamping end to the blob's
// length. Backs createReadStream's {start, end} option (spec.md §4.5).
func (s *Store) GetRange(id ID, start, end int64) ([]byte, error) {
	data, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	if start > end {
		start = end
	}
	return data[start:end], nil
}

// Exists reports whether id is present.
func (s *Store) Exists(id ID) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketBlobs).Get(id[:]) != nil
		return nil
	})
	return ok, err
}

// Delete removes id. Deleting an id referenced by more than one drive
// path would break the other reference; the drive layer never calls this
// (Drive.Del leaves blob bytes in place).
func (s *Store) Delete(id ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete(id[:])
	})
}

type errNotFound struct{ id ID }

func (e errNotFound) Error() string { return "blob: " + e.id.String() + " not found" }
