/*
Package swarm implements the Room Engine's transport layer (spec.md
§4.6): Kademlia DHT peer discovery by topic, mutually-authenticated
Noise-encrypted streams, and a replication backlog scheduler that
decides which missing block to fetch first once a stream is open.

# Topic derivation

Room topic = first 32 bytes of SHA-256 of the room's discovery key.
Blob topic = first 32 bytes of SHA-256 of the drive's public key
(topic.go). A topic is reduced to dht/v2's 20-byte infohash space by
truncation (dht.go) — collisions across topics only cost a spurious
discovery attempt, never a security property, since the actual stream
is authenticated by the Noise static key regardless of which topic
found it.

# Discovery and streams

Join(topic) announces the local node on the DHT and returns discovered
peer addresses as they resolve; the caller dials them and performs a
Noise XX handshake (noise.go) to get a mutually-authenticated encrypted
net.Conn. flush() (Swarm.Flush) resolves once one discovery round has
completed, per spec.md §6's suspension points.

# Replication backlog scheduling

Once a stream is open, the room multiplexes block-store replication for
every known writer-core over it (mux.go); the view-core and drive
content are not sent over the stream. backlog.go's Plan orders a set of
per-core backlogs into one WANT sequence: view-core first, then
writer-cores, then drive chunks, oldest index first within each core.
The room's replication path does not call Plan; each writer-core's
blockstore.Store.Replicate exchange runs on its own channel. Grounded on the teacher's scheduler
package: the same "given a fixed resource and several consumers, decide
an order" shape as bin-packing containers onto nodes, here applied to
block fetch order instead of container placement.
*/
package swarm
