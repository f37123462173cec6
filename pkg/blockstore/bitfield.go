package blockstore

// Bitfield is a growable bitset tracking which block indices a peer has.
// It backs the HAVE/WANT replication exchange described in spec.md §4.1.
type Bitfield struct {
	bits []byte
}

// NewBitfield returns an empty bitfield.
func NewBitfield() *Bitfield {
	return &Bitfield{}
}

// Set marks index i present.
func (b *Bitfield) Set(i uint64) {
	byteIdx := i / 8
	if uint64(len(b.bits)) <= byteIdx {
		grown := make([]byte, byteIdx+1)
		copy(grown, b.bits)
		b.bits = grown
	}
	b.bits[byteIdx] |= 1 << (i % 8)
}

// Has reports whether index i is marked present.
func (b *Bitfield) Has(i uint64) bool {
	byteIdx := i / 8
	if uint64(len(b.bits)) <= byteIdx {
		return false
	}
	return b.bits[byteIdx]&(1<<(i%8)) != 0
}

// Missing returns every index in [0, length) not yet marked present, in
// ascending order. Used by the replication scheduler to build WANT
// requests.
func (b *Bitfield) Missing(length uint64) []uint64 {
	var missing []uint64
	for i := uint64(0); i < length; i++ {
		if !b.Has(i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Bytes returns the raw bitset, as sent in a HAVE message.
func (b *Bitfield) Bytes() []byte {
	return b.bits
}

// BitfieldFromBytes reconstructs a Bitfield from raw bytes received over
// the wire.
func BitfieldFromBytes(raw []byte) *Bitfield {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Bitfield{bits: cp}
}
