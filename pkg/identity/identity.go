// Package identity manages the long-lived ed25519 key pair that names a
// process on the network (spec.md §3 Identity) and the signing/verification
// primitives built on it: writer-core ownership and invite capability
// signatures derive from the same key pair. Swarm Noise static keys do
// not; pkg/room generates a separate Noise key pair at runtime.
//
// Unlike the teacher's security package, which issues short-lived RSA
// certificates from a cluster certificate authority, a room has no central
// authority: every peer is self-sovereign, so identity here is just a key
// pair plus a mutable display name, persisted to a single small file rather
// than rotated certificates.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/latticechat/roomengine/pkg/rerr"
)

const (
	keyFileMode = 0o600
	dirMode     = 0o700
	pemBlockKey = "ROOM ENGINE IDENTITY KEY"
)

// Identity is a process's long-lived key pair plus its mutable display name.
type Identity struct {
	mu       sync.RWMutex
	public   ed25519.PublicKey
	private  ed25519.PrivateKey
	username string
}

// PublicKey returns the 32-byte public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.public
}

// Sign produces a detached signature over msg using the private key.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.private, msg)
}

// PrivateKey returns the identity's private key, needed to open the local
// writer-core backed by the same key pair (pkg/room treats one identity
// as one writer, so there is no separate writer key to persist).
func (id *Identity) PrivateKey() ed25519.PrivateKey {
	return id.private
}

// Username returns the current mutable display name.
func (id *Identity) Username() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.username
}

// SetUsername mutates the display name stamped as the Sender of
// subsequently sent messages. It never touches the key pair (spec.md §3: mutated only
// by profile change, never destroyed).
func (id *Identity) SetUsername(name string) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.username = name
}

// Verify checks a detached signature against a public key, independent of
// any particular Identity instance — used to verify invite capability
// signatures and peer writer admission claims.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Generate creates a fresh random identity with no display name set.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, rerr.Fatal("identity.Generate", err)
	}
	return &Identity{public: pub, private: priv}, nil
}

// keyPath returns the identity file location for a given key directory,
// mirroring the teacher's per-node certificate directory convention but
// collapsed to one file since there is no certificate chain to manage.
func keyPath(dir string) string {
	return filepath.Join(dir, "identity.pem")
}

// LoadOrGenerate loads a persisted identity from dir, generating and saving
// a new one on first run (spec.md §3: "created on first run"). dir is
// created if missing.
func LoadOrGenerate(dir string) (*Identity, error) {
	path := keyPath(dir)
	if _, err := os.Stat(path); err == nil {
		return Load(dir)
	} else if !os.IsNotExist(err) {
		return nil, rerr.Fatal("identity.LoadOrGenerate", err)
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(id, dir); err != nil {
		return nil, err
	}
	return id, nil
}

// Save persists the identity's private key to dir. Username is not
// persisted; it is held in memory only and stamped as the Sender of
// messages this identity sends.
func Save(id *Identity, dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return rerr.Fatal("identity.Save", fmt.Errorf("create identity dir: %w", err))
	}
	block := &pem.Block{Type: pemBlockKey, Bytes: id.private}
	if err := os.WriteFile(keyPath(dir), pem.EncodeToMemory(block), keyFileMode); err != nil {
		return rerr.Fatal("identity.Save", fmt.Errorf("write identity key: %w", err))
	}
	return nil
}

// Load reads a persisted identity from dir.
func Load(dir string) (*Identity, error) {
	raw, err := os.ReadFile(keyPath(dir))
	if err != nil {
		return nil, rerr.Fatal("identity.Load", fmt.Errorf("read identity key: %w", err))
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemBlockKey {
		return nil, rerr.Fatal("identity.Load", fmt.Errorf("malformed identity file %s", keyPath(dir)))
	}
	priv := ed25519.PrivateKey(block.Bytes)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, rerr.Fatal("identity.Load", fmt.Errorf("identity key has wrong size"))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{public: pub, private: priv}, nil
}

// FromSeed rebuilds an Identity from a 32-byte seed. Used when a process
// receives a writer key and matching seed out of band (e.g. restoring a
// writer-core after a pairing handshake in tests).
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, rerr.Invalid("identity.FromSeed", fmt.Errorf("seed must be %d bytes", ed25519.SeedSize))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Identity{public: pub, private: priv}, nil
}
