package container

import (
	"encoding/binary"
	"fmt"

	"github.com/chriscow/irmcodec/internal/huffman"
	"github.com/chriscow/irmcodec/pkg/irm"
)

// Reader parses container sections from an in-memory buffer in the same
// order the Writer emits them.
type Reader struct {
	data  []byte
	pos   int
	state State
}

// NewReader creates a Reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// State returns the current state.
func (r *Reader) State() State {
	return r.state
}

// ReadHeader reads and validates the fixed header.
func (r *Reader) ReadHeader() (Header, error) {
	if err := r.expect("ReadHeader", StateIdle); err != nil {
		return Header{}, err
	}
	if len(r.data)-r.pos < HeaderSize {
		return Header{}, irm.Errorf(irm.ErrCorruptContainer, "container.ReadHeader",
			"need %d header bytes, have %d", HeaderSize, len(r.data)-r.pos)
	}

	var h Header
	if err := h.UnmarshalBinary(r.data[r.pos : r.pos+HeaderSize]); err != nil {
		return Header{}, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	r.pos += HeaderSize
	r.state = StateHeader
	return h, nil
}

// ReadTable reads the length-prefixed table section.
func (r *Reader) ReadTable() (Layout, *huffman.Table, error) {
	const op = "container.ReadTable"

	if err := r.expect("ReadTable", StateHeader); err != nil {
		return Layout{}, nil, err
	}
	if len(r.data)-r.pos < 4 {
		return Layout{}, nil, irm.Errorf(irm.ErrCorruptContainer, op, "missing table length")
	}
	size := binary.BigEndian.Uint32(r.data[r.pos:])
	if uint64(size) > uint64(len(r.data)-r.pos-4) {
		return Layout{}, nil, irm.Errorf(irm.ErrCorruptContainer, op,
			"table length %d exceeds %d available bytes", size, len(r.data)-r.pos-4)
	}
	start := r.pos + 4
	end := start + int(size)

	payload, err := decompressZstd(r.data[start:end])
	if err != nil {
		return Layout{}, nil, irm.Wrap(irm.ErrCorruptContainer, op, fmt.Errorf("zstd decode: %w", err))
	}
	layout, err := unmarshalLayout(payload)
	if err != nil {
		return Layout{}, nil, err
	}
	table, n, err := huffman.UnmarshalTable(payload[layoutSize:])
	if err != nil {
		return Layout{}, nil, err
	}
	if layoutSize+n != len(payload) {
		return Layout{}, nil, irm.Errorf(irm.ErrCorruptContainer, op,
			"%d trailing bytes after table", len(payload)-layoutSize-n)
	}

	r.pos = end
	r.state = StateTable
	return layout, table, nil
}

// ReadBitstream returns the remaining bytes. The slice aliases the buffer.
func (r *Reader) ReadBitstream() ([]byte, error) {
	if err := r.expect("ReadBitstream", StateTable); err != nil {
		return nil, err
	}
	out := r.data[r.pos:]
	r.pos = len(r.data)
	r.state = StateBitstream
	return out, nil
}

// Close marks the reader finished. It fails unless every section was read.
func (r *Reader) Close() error {
	if err := r.expect("Close", StateBitstream); err != nil {
		return err
	}
	r.state = StateClosed
	return nil
}

func (r *Reader) expect(op string, want State) error {
	if r.state != want {
		return irm.Errorf(irm.ErrInvalidInput, "container."+op, "reader is %s, want %s", r.state, want)
	}
	return nil
}
