package dispatch

import (
	"fmt"

	msgpack "github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/latticechat/roomengine/pkg/rerr"
)

// Version is the current record format version. It is carried on every
// record so a future incompatible framing change can be detected; schema
// evolution within a version only appends payload fields.
const Version byte = 1

var mh = &msgpack.MsgpackHandle{}

// Encode produces [tag][version][msgpack payload] for a named command.
func Encode(name Name, payload interface{}) ([]byte, error) {
	tag, ok := TagForName(name)
	if !ok {
		return nil, rerr.Invalid("dispatch.Encode", fmt.Errorf("unknown command name %q", name))
	}

	var body []byte
	enc := msgpack.NewEncoderBytes(&body, mh)
	if err := enc.Encode(payload); err != nil {
		return nil, rerr.Invalid("dispatch.Encode", fmt.Errorf("encode payload for %q: %w", name, err))
	}

	out := make([]byte, 2+len(body))
	out[0] = byte(tag)
	out[1] = Version
	copy(out[2:], body)
	return out, nil
}

// Decode splits a record into its symbolic name and raw payload bytes. It
// returns ok=false (not an error) for an unknown tag, per spec.md §4.4's
// forward-compatibility policy — callers must ignore, not reject, those.
func Decode(record []byte) (name Name, payload []byte, ok bool, err error) {
	if len(record) < 2 {
		return "", nil, false, rerr.Invalid("dispatch.Decode", fmt.Errorf("record too short: %d bytes", len(record)))
	}
	tag := Tag(record[0])
	// record[1] is the version byte; this implementation has exactly one
	// wire version, so it is accepted but otherwise unused.
	n, known := NameForTag(tag)
	if !known {
		return "", nil, false, nil
	}
	return n, record[2:], true, nil
}

// DecodePayload unmarshals raw payload bytes (as returned by Decode) into
// dst, which must be a pointer to the matching payload struct.
func DecodePayload(raw []byte, dst interface{}) error {
	dec := msgpack.NewDecoderBytes(raw, mh)
	if err := dec.Decode(dst); err != nil {
		return rerr.Invalid("dispatch.DecodePayload", err)
	}
	return nil
}
