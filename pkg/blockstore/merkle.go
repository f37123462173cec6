package blockstore

import (
	"crypto/ed25519"
	"crypto/sha256"
)

// blockHash returns the leaf hash for a single block's bytes.
func blockHash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// nextRoot folds a new block hash into the running accumulator. With
// prevRoot == nil (the empty log), the new root is just the block hash.
func nextRoot(prevRoot, leaf []byte) []byte {
	if prevRoot == nil {
		out := make([]byte, len(leaf))
		copy(out, leaf)
		return out
	}
	h := sha256.New()
	h.Write(prevRoot)
	h.Write(leaf)
	return h.Sum(nil)
}

// signRoot signs a root with the owning writer's private key. The
// signature is what spec.md's wire format calls SIGNATURE(root-sig).
func signRoot(priv ed25519.PrivateKey, root []byte) []byte {
	return ed25519.Sign(priv, root)
}

// verifyRoot checks a root's signature against the writer's public key.
func verifyRoot(pub ed25519.PublicKey, root, sig []byte) bool {
	return ed25519.Verify(pub, root, sig)
}
