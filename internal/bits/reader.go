package bits

import "errors"

// ErrOverrun is returned when a read goes past the end of the buffer.
var ErrOverrun = errors.New("bits: read past end of buffer")

// Reader reads bits MSB-first from a byte buffer.
type Reader struct {
	buf []byte
	pos int // next bit position
}

// NewReader creates a Reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// ReadBit returns the next bit.
func (r *Reader) ReadBit() (uint8, error) {
	if r.pos >= len(r.buf)*8 {
		return 0, ErrOverrun
	}
	b := r.buf[r.pos>>3] >> (7 - uint(r.pos&7)) & 1
	r.pos++
	return b, nil
}

// ReadBits returns the next n bits as the low bits of a uint64.
// n must be 0-64.
func (r *Reader) ReadBits(n uint) (uint64, error) {
	if r.pos+int(n) > len(r.buf)*8 {
		return 0, ErrOverrun
	}
	var v uint64
	for i := uint(0); i < n; i++ {
		b, _ := r.ReadBit()
		v = v<<1 | uint64(b)
	}
	return v, nil
}

// Pos returns the number of bits consumed.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bits, padding included.
func (r *Reader) Remaining() int {
	return len(r.buf)*8 - r.pos
}
