/*
Package blockstore implements the Room Engine's single-writer append-only
log (spec.md §4.1): an ordered, integrity-verified sequence of opaque byte
records indexed from zero, owned by one ed25519 key pair, and replicated to
other peers block-by-block over whatever stream the swarm layer hands it.

# Architecture

	┌─────────────────── BLOCK STORE (per writer) ──────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              bbolt-backed log                │          │
	│  │  bucket "blocks": index(u64be) -> bytes      │          │
	│  │  bucket "meta":   "length", "root"           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Hash-chain accumulator            │          │
	│  │  root[i] = sha256(root[i-1] || sha256(data)) │          │
	│  │  signature = ed25519(root[i]) — owner only   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Replication duplex              │          │
	│  │  HAVE(start,bitfield) ⇄ WANT(index,length)   │          │
	│  │       ⇄ DATA(index,block,root,sig)           │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Ownership

A Store opened with a private key is writable: only that process may
Append. A Store opened with only a public key is a read-only replica,
populated solely through Replicate; Append on it fails with a
*rerr.Error of Kind Unauthorised.

# Integrity

Every block carries its position in a running hash-chain accumulator,
referred to here as the block's Merkle root per spec.md's NODE/SIGNATURE
wire messages even though the accumulator is a chain rather than a tree —
verifying a remote block means recomputing the chain from the last locally
trusted root and checking the owner's signature over the new root, which
is exactly what a Merkle audit proof buys you for an append-only log.
*/
package blockstore
