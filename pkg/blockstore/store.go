package blockstore

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
)

var (
	bucketBlocks = []byte("blocks")
	bucketMeta   = []byte("meta")

	metaKeyLength = []byte("length")
	metaKeyRoot   = []byte("root")
)

// Store is a single-writer append-only log backed by bbolt, identified by
// a 32-byte ed25519 public key (spec.md §4.1).
type Store struct {
	mu      sync.RWMutex
	db      *bolt.DB
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey // nil for a read-only replica
	length  uint64
	root    []byte
	have    *Bitfield
	logger  zerolog.Logger
	onBlock func(index uint64) // fired after a block is durably stored
}

// Open opens (creating if absent) the block store segment for the given
// public key inside dataDir, e.g. "<corestore>/<hex pubkey>/". priv may be
// nil to open a read-only replica.
func Open(dataDir string, pub ed25519.PublicKey, priv ed25519.PrivateKey) (*Store, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, rerr.Invalid("blockstore.Open", fmt.Errorf("public key must be %d bytes", ed25519.PublicKeySize))
	}
	path := filepath.Join(dataDir, "data")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, rerr.Fatal("blockstore.Open", fmt.Errorf("open %s: %w", path, err))
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlocks); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		db.Close()
		return nil, rerr.Fatal("blockstore.Open", err)
	}

	s := &Store{
		db:     db,
		pub:    pub,
		priv:   priv,
		have:   NewBitfield(),
		logger: rlog.WithComponent("blockstore"),
	}

	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	for i := uint64(0); i < s.length; i++ {
		s.have.Set(i)
	}
	return s, nil
}

func (s *Store) loadMeta() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if raw := b.Get(metaKeyLength); raw != nil {
			s.length = binary.BigEndian.Uint64(raw)
		}
		if raw := b.Get(metaKeyRoot); raw != nil {
			s.root = append([]byte(nil), raw...)
		}
		return nil
	})
}

// PublicKey returns the 32-byte key identifying this log.
func (s *Store) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Writable reports whether this process owns the signing key.
func (s *Store) Writable() bool {
	return s.priv != nil
}

// Length returns the number of blocks durably appended or replicated.
func (s *Store) Length() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

// OnBlock registers a callback fired synchronously after every block this
// store accepts, whether via Append or via Replicate. Autobase uses this to
// learn about newly available records without polling.
func (s *Store) OnBlock(fn func(index uint64)) {
	s.mu.Lock()
	s.onBlock = fn
	s.mu.Unlock()
}

// Append adds a new block, signs the updated hash-chain root, and returns
// its index. Fails with rerr.Unauthorised if this store was opened without
// the signing key (spec.md §4.1: NotWritable).
func (s *Store) Append(data []byte) (uint64, error) {
	s.mu.Lock()

	if s.priv == nil {
		s.mu.Unlock()
		return 0, rerr.Unauthorised("blockstore.Append", fmt.Errorf("store for %x is not writable locally", s.pub))
	}

	index := s.length
	newRoot := nextRoot(s.root, blockHash(data))
	sig := signRoot(s.priv, newRoot)

	if err := s.putBlock(index, data, newRoot, sig); err != nil {
		s.mu.Unlock()
		return 0, err
	}

	s.length = index + 1
	s.root = newRoot
	s.have.Set(index)
	s.logger.Debug().Uint64("index", index).Int("bytes", len(data)).Msg("appended block")

	onBlock := s.onBlock
	s.mu.Unlock()

	// Fired after releasing s.mu: a subscriber (autobase) typically reads
	// back this very block via Get/Length, which take s.mu themselves, so
	// the notification must not run while this goroutine still holds it.
	if onBlock != nil {
		onBlock(index)
	}
	return index, nil
}

// storedBlock is what actually lives in the blocks bucket: the payload
// plus enough to re-verify the chain without recomputing from genesis.
type storedBlock struct {
	Data []byte
	Root []byte
	Sig  []byte
}

func (s *Store) putBlock(index uint64, data, root, sig []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		blocks := tx.Bucket(bucketBlocks)
		if err := blocks.Put(indexKey(index), encodeStoredBlock(data, root, sig)); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		lenBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(lenBuf, index+1)
		if err := meta.Put(metaKeyLength, lenBuf); err != nil {
			return err
		}
		return meta.Put(metaKeyRoot, root)
	})
}

// Get returns the block at index, or a Transient error if it has not yet
// been replicated locally (spec.md §4.1: Missing — caller waits for an
// update event).
func (s *Store) Get(index uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.have.Has(index) {
		return nil, rerr.Transient("blockstore.Get", fmt.Errorf("block %d not yet replicated", index))
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlocks).Get(indexKey(index))
		if raw == nil {
			return fmt.Errorf("block %d missing from local bucket despite have-bit set", index)
		}
		blk, err := decodeStoredBlock(raw)
		if err != nil {
			return err
		}
		data = blk.Data
		return nil
	})
	if err != nil {
		return nil, rerr.Fatal("blockstore.Get", err)
	}
	return data, nil
}

// Have reports whether index is present locally.
func (s *Store) Have(index uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.have.Has(index)
}

// acceptRemote stores a block received via replication after verifying its
// signature extends the known chain. Returns rerr.Fatal if verification
// fails — per spec.md §7, corrupt Merkle verification is unrecoverable for
// that peer's view of this log.
func (s *Store) acceptRemote(index uint64, data, root, sig []byte) error {
	s.mu.Lock()

	if index != s.length {
		// Out-of-order DATA; the replication duplex should not produce
		// this, but guard against a misbehaving peer rather than corrupt
		// the chain.
		s.mu.Unlock()
		return rerr.Invalid("blockstore.acceptRemote", fmt.Errorf("expected index %d, got %d", s.length, index))
	}
	expected := nextRoot(s.root, blockHash(data))
	if string(expected) != string(root) {
		s.mu.Unlock()
		return rerr.Fatal("blockstore.acceptRemote", fmt.Errorf("root mismatch at index %d", index))
	}
	if !verifyRoot(s.pub, root, sig) {
		s.mu.Unlock()
		return rerr.Fatal("blockstore.acceptRemote", fmt.Errorf("signature verification failed at index %d", index))
	}

	if err := s.putBlock(index, data, root, sig); err != nil {
		s.mu.Unlock()
		return rerr.Fatal("blockstore.acceptRemote", err)
	}
	s.length = index + 1
	s.root = root
	s.have.Set(index)

	onBlock := s.onBlock
	s.mu.Unlock()

	if onBlock != nil {
		onBlock(index)
	}
	return nil
}

// rawBlock returns the raw encoded bytes for a block, used by the
// replication handler to resend an already-decoded-on-demand block without
// re-acquiring locks held by Get.
func (s *Store) rawBlock(index uint64) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(indexKey(index))
		if v == nil {
			return fmt.Errorf("block %d not found", index)
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	return raw, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func indexKey(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}
