package swarm

import "crypto/sha256"

// Topic is a 32-byte DHT announce/lookup key (spec.md §4.6: "Room topic
// = first 32 bytes of SHA-256 of the room's discovery key... Blob topic
// = first 32 bytes of SHA-256 of the drive's public key").
type Topic [32]byte

// RoomTopic derives the topic peers use to discover each other for a
// room's autobase replication, from the room's discovery key (its
// bootstrap writer-core's public key).
func RoomTopic(discoveryKey []byte) Topic {
	return Topic(sha256.Sum256(discoveryKey))
}

// BlobTopic derives the topic used for drive chunk-core replication,
// deliberately independent of RoomTopic so a peer can be granted file
// access without also being a chat writer, or vice versa.
func BlobTopic(drivePublicKey []byte) Topic {
	return Topic(sha256.Sum256(drivePublicKey))
}

// PairingTopic derives the topic a blind-pairing candidate and inviter
// rendezvous on, from the invite's own ID (spec.md §4.6 step 2: "candidate
// joins the pairing topic derived from id"). Independent of RoomTopic so a
// pairing candidate cannot be mistaken for an already-admitted replication
// peer before the invite is verified.
func PairingTopic(inviteID []byte) Topic {
	return Topic(sha256.Sum256(inviteID))
}
