// Package container reads and writes the IRM file format.
//
// Layout, big-endian:
//
//	header                    36 bytes, see Header
//	table_byte_length         uint32
//	table                     table_byte_length bytes, zstd-compressed
//	bitstream                 remaining bytes, MSB-first, zero-padded
//
// The decompressed table is a two-byte Layout followed by the Huffman table
// serialization. There is no resynchronization: any corruption fails
// the whole read.
package container

import (
	"encoding/binary"
	"math"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// HeaderSize is the fixed size of the encoded header.
const HeaderSize = 36

// Header is the fixed-size container header.
type Header struct {
	SampleRate       uint32
	SubsampledLength uint32 // retained samples across all stream channels
	PairCount        uint32 // RLE pairs in the bitstream
	MaxAmplitude     float32
	Mean             float32
	BitDepth         uint32 // of the original PCM
	Channels         uint32 // of the original PCM
	FrameRate        uint32
	FrameWidth       uint32 // bytes per original frame
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, HeaderSize)
	out = binary.BigEndian.AppendUint32(out, h.SampleRate)
	out = binary.BigEndian.AppendUint32(out, h.SubsampledLength)
	out = binary.BigEndian.AppendUint32(out, h.PairCount)
	out = binary.BigEndian.AppendUint32(out, math.Float32bits(h.MaxAmplitude))
	out = binary.BigEndian.AppendUint32(out, math.Float32bits(h.Mean))
	out = binary.BigEndian.AppendUint32(out, h.BitDepth)
	out = binary.BigEndian.AppendUint32(out, h.Channels)
	out = binary.BigEndian.AppendUint32(out, h.FrameRate)
	out = binary.BigEndian.AppendUint32(out, h.FrameWidth)
	return out, nil
}

// UnmarshalBinary decodes a header from exactly HeaderSize bytes.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return irm.Errorf(irm.ErrCorruptContainer, "container.Header", "header is %d bytes, want %d", len(data), HeaderSize)
	}

	u := func(i int) uint32 { return binary.BigEndian.Uint32(data[i*4:]) }
	h.SampleRate = u(0)
	h.SubsampledLength = u(1)
	h.PairCount = u(2)
	h.MaxAmplitude = math.Float32frombits(u(3))
	h.Mean = math.Float32frombits(u(4))
	h.BitDepth = u(5)
	h.Channels = u(6)
	h.FrameRate = u(7)
	h.FrameWidth = u(8)
	return nil
}

// Validate checks the fields a decoder depends on.
func (h Header) Validate() error {
	const op = "container.Header"

	if h.Channels != 1 && h.Channels != 2 {
		return irm.Errorf(irm.ErrUnsupportedFormat, op, "only mono and stereo are supported, got %d channels", h.Channels)
	}
	switch h.BitDepth {
	case 8, 16, 24, 32:
	default:
		return irm.Errorf(irm.ErrUnsupportedFormat, op, "unsupported bit depth %d", h.BitDepth)
	}
	if h.FrameWidth != h.Channels*h.BitDepth/8 {
		return irm.Errorf(irm.ErrCorruptContainer, op,
			"frame width %d does not match %d channels at %d bits", h.FrameWidth, h.Channels, h.BitDepth)
	}
	if h.SampleRate == 0 {
		return irm.Errorf(irm.ErrCorruptContainer, op, "zero sample rate")
	}

	maxAmp, mean := float64(h.MaxAmplitude), float64(h.Mean)
	if math.IsNaN(maxAmp) || math.IsInf(maxAmp, 0) || maxAmp < 0 {
		return irm.Errorf(irm.ErrCorruptContainer, op, "invalid max amplitude %g", maxAmp)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return irm.Errorf(irm.ErrCorruptContainer, op, "invalid mean %g", mean)
	}
	if h.PairCount > h.SubsampledLength {
		return irm.Errorf(irm.ErrCorruptContainer, op,
			"%d pairs cannot expand to %d samples", h.PairCount, h.SubsampledLength)
	}
	return nil
}
