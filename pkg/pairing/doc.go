// Package pairing implements the blind-pairing capability handshake
// (spec.md §4.6): an inviter issues a single-use signed capability out of
// band, a candidate presents it over a short-lived rendezvous topic, and
// the inviter grants writer admission without any prior shared trust.
//
// The invite itself never crosses the wire as a bare writer key grant: it
// is a capability — an ed25519 signature over the invite ID, the room's
// discovery key, and an expiry — that only the inviter's own view can
// redeem, because redemption means looking up and consuming the matching
// view.Invite record. This mirrors the teacher's pkg/manager.TokenManager
// (an in-memory map of single-use, expiring, revocable tokens keyed by a
// random string) generalized from a bearer token to a signed capability,
// and the teacher's pkg/security.CertAuthority's issue/verify split,
// without a certificate chain: there is no central CA, so the "authority"
// is just the inviter's own identity key and its own view.
package pairing
