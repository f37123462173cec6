package pairing

import (
	"encoding/binary"
	"fmt"

	msgpack "github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/latticechat/roomengine/pkg/identity"
	"github.com/latticechat/roomengine/pkg/rerr"
)

var mh = &msgpack.MsgpackHandle{}

// capability is the signed claim an invite string encodes: "the holder of
// this ID, for this room, before this expiry, was authorised by the
// signer". It never carries the candidate's key — that is presented
// separately, at redemption time, over the pairing stream.
type capability struct {
	ID        []byte `msgpack:"id"`
	RoomKey   []byte `msgpack:"room_key"`
	Expires   int64  `msgpack:"expires"` // ms epoch, 0 = never
	Signature []byte `msgpack:"signature"`
}

// signingMessage is the exact byte sequence the inviter signs and the
// redeemer re-derives to verify; order and framing must match on both
// sides or every signature fails.
func signingMessage(id, roomKey []byte, expires int64) []byte {
	msg := make([]byte, 0, len(id)+len(roomKey)+8)
	msg = append(msg, id...)
	msg = append(msg, roomKey...)
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], uint64(expires))
	return append(msg, exp[:]...)
}

func signCapability(id *identity.Identity, ic capability) capability {
	ic.Signature = id.Sign(signingMessage(ic.ID, ic.RoomKey, ic.Expires))
	return ic
}

func verifyCapability(signer []byte, ic capability) bool {
	return identity.Verify(signer, signingMessage(ic.ID, ic.RoomKey, ic.Expires), ic.Signature)
}

func encodeCapability(ic capability) ([]byte, error) {
	var out []byte
	enc := msgpack.NewEncoderBytes(&out, mh)
	if err := enc.Encode(ic); err != nil {
		return nil, rerr.Invalid("pairing.encodeCapability", err)
	}
	return out, nil
}

func decodeCapability(raw []byte) (capability, error) {
	var ic capability
	dec := msgpack.NewDecoderBytes(raw, mh)
	if err := dec.Decode(&ic); err != nil {
		return capability{}, rerr.Invalid("pairing.decodeCapability", err)
	}
	return ic, nil
}

// encodeInvite renders a capability's wire bytes as the z-base32 invite
// string shared with a candidate out of band.
func encodeInvite(ic capability) (string, []byte, error) {
	raw, err := encodeCapability(ic)
	if err != nil {
		return "", nil, err
	}
	return encodeZBase32(raw), raw, nil
}

// decodeInviteRaw parses an invite string back into its capability,
// returning the raw msgpack bytes alongside it so a candidate can
// retransmit the identical capability over the pairing stream rather than
// re-encoding it (which would be byte-identical anyway, but this avoids
// relying on that).
func decodeInviteRaw(s string) (capability, []byte, error) {
	raw, err := decodeZBase32(s)
	if err != nil {
		return capability{}, nil, rerr.Invalid("pairing.decodeInvite", fmt.Errorf("malformed invite string: %w", err))
	}
	ic, err := decodeCapability(raw)
	return ic, raw, err
}

// DecodeInviteID extracts an invite string's id and room key without
// verifying its signature. A candidate needs both before it can even
// reach an inviter: id derives the pairing rendezvous topic, and the room
// key is the room's discovery key, not a secret, so reading it ahead of
// verification reveals nothing the inviter didn't already put in the
// invite string.
func DecodeInviteID(inviteString string) (id, roomKey []byte, err error) {
	ic, _, err := decodeInviteRaw(inviteString)
	if err != nil {
		return nil, nil, err
	}
	return ic.ID, ic.RoomKey, nil
}
