package blockstore

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
)

const (
	rootSize = 32 // sha256 digest
	sigSize  = ed25519.SignatureSize
)

// encodeStoredBlock lays out [u32 len(data)][data][root(32)][sig(64)]. Root
// and signature are fixed-size so no length prefix is needed for them.
func encodeStoredBlock(data, root, sig []byte) []byte {
	buf := make([]byte, 4+len(data)+rootSize+sigSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(data)))
	copy(buf[4:], data)
	copy(buf[4+len(data):], root)
	copy(buf[4+len(data)+rootSize:], sig)
	return buf
}

func decodeStoredBlock(raw []byte) (storedBlock, error) {
	if len(raw) < 4 {
		return storedBlock{}, fmt.Errorf("stored block truncated")
	}
	dataLen := int(binary.BigEndian.Uint32(raw[0:4]))
	want := 4 + dataLen + rootSize + sigSize
	if len(raw) != want {
		return storedBlock{}, fmt.Errorf("stored block length mismatch: got %d want %d", len(raw), want)
	}
	data := raw[4 : 4+dataLen]
	root := raw[4+dataLen : 4+dataLen+rootSize]
	sig := raw[4+dataLen+rootSize:]
	return storedBlock{Data: data, Root: root, Sig: sig}, nil
}
