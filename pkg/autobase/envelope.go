package autobase

import (
	"encoding/hex"

	msgpack "github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/latticechat/roomengine/pkg/rerr"
)

var envelopeHandle = &msgpack.MsgpackHandle{}

// envelope is the unit appended to a writer-core. Clock maps a writer's
// hex-encoded public key to the number of that writer's records this
// envelope's author had observed at append time; Record is the raw
// dispatch-encoded command (spec.md §4.4). AppendedAt is the author's
// local Unix-nano clock at append time, used only to report
// roomengine_linearise_lag_seconds; it plays no part in ordering.
type envelope struct {
	Clock      map[string]uint64 `msgpack:"clock"`
	Record     []byte            `msgpack:"record"`
	AppendedAt int64             `msgpack:"appended_at"`
}

func encodeEnvelope(e envelope) ([]byte, error) {
	var out []byte
	enc := msgpack.NewEncoderBytes(&out, envelopeHandle)
	if err := enc.Encode(e); err != nil {
		return nil, rerr.Fatal("autobase.encodeEnvelope", err)
	}
	return out, nil
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var e envelope
	dec := msgpack.NewDecoderBytes(raw, envelopeHandle)
	if err := dec.Decode(&e); err != nil {
		return envelope{}, rerr.Invalid("autobase.decodeEnvelope", err)
	}
	if e.Clock == nil {
		e.Clock = map[string]uint64{}
	}
	return e, nil
}

func writerKeyHex(key []byte) string {
	return hex.EncodeToString(key)
}

// ready reports whether every dependency named in e's clock has already
// been linearised, given cursor (writer hex key → next un-linearised
// index, i.e. count of records already linearised for that writer).
func (e envelope) ready(cursor map[string]uint64) bool {
	for writer, need := range e.Clock {
		if cursor[writer] < need {
			return false
		}
	}
	return true
}
