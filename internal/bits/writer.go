// Package bits packs and unpacks MSB-first bit sequences.
//
// The final byte of a packed stream is zero-padded on the right; readers must
// know from context how many bits are meaningful.
package bits

// Writer accumulates bits MSB-first into a byte slice.
type Writer struct {
	buf   []byte
	cur   byte // partial byte, filled from the high bit down
	nbits uint // bits used in cur (0-7)
	total int  // total bits written
}

// NewWriter creates a Writer with room for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// WriteBit appends a single bit (any non-zero b is 1).
func (w *Writer) WriteBit(b uint8) {
	if b != 0 {
		w.cur |= 0x80 >> w.nbits
	}
	w.nbits++
	w.total++
	if w.nbits == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.nbits = 0
	}
}

// WriteBits appends the low n bits of v, most significant first.
// n must be 0-64.
func (w *Writer) WriteBits(v uint64, n uint) {
	for i := n; i > 0; i-- {
		w.WriteBit(uint8(v >> (i - 1) & 1))
	}
}

// Len returns the number of bits written.
func (w *Writer) Len() int {
	return w.total
}

// Bytes returns the packed bits, zero-padding the final partial byte. The
// Writer may continue to be used afterwards.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf), len(w.buf)+1)
	copy(out, w.buf)
	if w.nbits > 0 {
		out = append(out, w.cur)
	}
	return out
}

// ByteLen returns the size in bytes of the padded output.
func ByteLen(bitCount int) int {
	return (bitCount + 7) / 8
}
