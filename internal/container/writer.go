package container

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chriscow/irmcodec/internal/huffman"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/klauspost/compress/zstd"
)

// State is the position of a Writer or Reader in the section sequence.
type State int

const (
	StateIdle State = iota
	StateHeader
	StateTable
	StateBitstream
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHeader:
		return "header written"
	case StateTable:
		return "table written"
	case StateBitstream:
		return "bitstream written"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Writer emits container sections in order: header, table, bitstream.
// Calling a section out of order is an error and leaves the state unchanged.
type Writer struct {
	w       io.Writer
	state   State
	level   zstd.EncoderLevel
	written int64
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTableLevel sets the zstd level used for the table section.
func WithTableLevel(level zstd.EncoderLevel) WriterOption {
	return func(w *Writer) {
		w.level = level
	}
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	cw := &Writer{w: w, level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(cw)
	}
	return cw
}

// State returns the current state.
func (w *Writer) State() State {
	return w.state
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

// WriteHeader writes the fixed header.
func (w *Writer) WriteHeader(h Header) error {
	if err := w.expect("WriteHeader", StateIdle); err != nil {
		return err
	}
	if err := h.Validate(); err != nil {
		return err
	}

	data, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if err := w.write("WriteHeader", data); err != nil {
		return err
	}
	w.state = StateHeader
	return nil
}

// WriteTable writes the length-prefixed, compressed stream layout and code
// table.
func (w *Writer) WriteTable(layout Layout, table *huffman.Table) error {
	if err := w.expect("WriteTable", StateHeader); err != nil {
		return err
	}
	if !layout.Mode.Valid() {
		return irm.Errorf(irm.ErrInvalidInput, "container.WriteTable", "unknown stereo mode %d", uint8(layout.Mode))
	}

	serialized, err := table.MarshalBinary()
	if err != nil {
		return err
	}
	payload := make([]byte, 0, layoutSize+len(serialized))
	payload = append(payload, layout.marshal()...)
	payload = append(payload, serialized...)

	compressed, err := compressZstd(payload, w.level)
	if err != nil {
		return irm.Wrap(irm.ErrInvalidInput, "container.WriteTable", fmt.Errorf("zstd encode: %w", err))
	}

	prefix := binary.BigEndian.AppendUint32(nil, uint32(len(compressed)))
	if err := w.write("WriteTable", prefix); err != nil {
		return err
	}
	if err := w.write("WriteTable", compressed); err != nil {
		return err
	}
	w.state = StateTable
	return nil
}

// WriteBitstream writes the packed Huffman bits.
func (w *Writer) WriteBitstream(data []byte) error {
	if err := w.expect("WriteBitstream", StateTable); err != nil {
		return err
	}
	if err := w.write("WriteBitstream", data); err != nil {
		return err
	}
	w.state = StateBitstream
	return nil
}

// Close finishes the container. It fails unless every section was written;
// it does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.expect("Close", StateBitstream); err != nil {
		return err
	}
	w.state = StateClosed
	return nil
}

func (w *Writer) expect(op string, want State) error {
	if w.state != want {
		return irm.Errorf(irm.ErrInvalidInput, "container."+op, "writer is %s, want %s", w.state, want)
	}
	return nil
}

func (w *Writer) write(op string, data []byte) error {
	n, err := w.w.Write(data)
	w.written += int64(n)
	if err != nil {
		return irm.Wrap(irm.ErrIOFailure, "container."+op, err)
	}
	return nil
}
