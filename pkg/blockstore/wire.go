package blockstore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame tags for the block-store replication protocol (spec.md §6).
// DATA bundles what the spec separately names NODE(merkle-proof) and
// SIGNATURE(root-sig) into one frame — index, block, the resulting root,
// and its signature — since in a hash-chain accumulator (rather than a
// full Merkle tree) the "proof" for a block is just the preceding root,
// which is already implicit in one contiguous DATA stream.
const (
	tagHave byte = iota
	tagWant
	tagData
)

type haveMsg struct {
	Start    uint64
	Bitfield []byte
}

type wantMsg struct {
	Index  uint64
	Length uint64
}

type dataMsg struct {
	Index uint64
	Block []byte
	Root  []byte
	Sig   []byte
}

func writeFrame(w io.Writer, tag byte, payload []byte) error {
	// Built as one buffer and sent with a single Write so that concurrent
	// writers sharing a connection (via safeWriter) can't interleave a
	// header with another goroutine's payload.
	frame := make([]byte, 5+len(payload))
	frame[0] = tag
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return header[0], payload, nil
}

func encodeHave(m haveMsg) []byte {
	buf := make([]byte, 8+len(m.Bitfield))
	binary.BigEndian.PutUint64(buf[:8], m.Start)
	copy(buf[8:], m.Bitfield)
	return buf
}

func decodeHave(b []byte) (haveMsg, error) {
	if len(b) < 8 {
		return haveMsg{}, fmt.Errorf("short HAVE frame")
	}
	return haveMsg{Start: binary.BigEndian.Uint64(b[:8]), Bitfield: b[8:]}, nil
}

func encodeWant(m wantMsg) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], m.Index)
	binary.BigEndian.PutUint64(buf[8:], m.Length)
	return buf
}

func decodeWant(b []byte) (wantMsg, error) {
	if len(b) != 16 {
		return wantMsg{}, fmt.Errorf("malformed WANT frame")
	}
	return wantMsg{Index: binary.BigEndian.Uint64(b[:8]), Length: binary.BigEndian.Uint64(b[8:])}, nil
}

func encodeData(m dataMsg) []byte {
	buf := make([]byte, 8+4+len(m.Block)+rootSize+sigSize)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], m.Index)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Block)))
	off += 4
	copy(buf[off:], m.Block)
	off += len(m.Block)
	copy(buf[off:], m.Root)
	off += rootSize
	copy(buf[off:], m.Sig)
	return buf
}

func decodeData(b []byte) (dataMsg, error) {
	if len(b) < 12 {
		return dataMsg{}, fmt.Errorf("short DATA frame")
	}
	index := binary.BigEndian.Uint64(b[:8])
	blockLen := int(binary.BigEndian.Uint32(b[8:12]))
	want := 12 + blockLen + rootSize + sigSize
	if len(b) != want {
		return dataMsg{}, fmt.Errorf("DATA frame length mismatch: got %d want %d", len(b), want)
	}
	block := b[12 : 12+blockLen]
	root := b[12+blockLen : 12+blockLen+rootSize]
	sig := b[12+blockLen+rootSize:]
	return dataMsg{Index: index, Block: block, Root: root, Sig: sig}, nil
}
