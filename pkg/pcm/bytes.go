package pcm

import (
	"github.com/chriscow/irmcodec/pkg/irm"
)

// Decode converts little-endian PCM bytes to samples. 8-bit data is unsigned
// with a 128 bias, wider data is two's-complement signed.
func Decode(data []byte, bitDepth int) ([]int32, error) {
	width := bitDepth / 8
	if width < 1 || width > 4 || bitDepth%8 != 0 {
		return nil, irm.Errorf(irm.ErrUnsupportedFormat, "pcm.Decode", "unsupported bit depth %d", bitDepth)
	}
	if len(data)%width != 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "pcm.Decode",
			"%d bytes is not a whole number of %d-bit samples", len(data), bitDepth)
	}

	out := make([]int32, len(data)/width)
	for i := range out {
		p := data[i*width : (i+1)*width]
		switch width {
		case 1:
			out[i] = int32(p[0]) - 128
		case 2:
			out[i] = int32(int16(uint16(p[0]) | uint16(p[1])<<8))
		case 3:
			v := int32(p[0]) | int32(p[1])<<8 | int32(p[2])<<16
			out[i] = v << 8 >> 8 // sign-extend 24 bits
		case 4:
			out[i] = int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24)
		}
	}
	return out, nil
}

// Encode converts samples to little-endian PCM bytes at bitDepth. Samples are
// clamped to the representable range.
func Encode(samples []int32, bitDepth int) ([]byte, error) {
	width := bitDepth / 8
	if width < 1 || width > 4 || bitDepth%8 != 0 {
		return nil, irm.Errorf(irm.ErrUnsupportedFormat, "pcm.Encode", "unsupported bit depth %d", bitDepth)
	}

	out := make([]byte, len(samples)*width)
	for i, s := range samples {
		v := uint32(Clamp(int64(s), bitDepth))
		p := out[i*width : (i+1)*width]
		if width == 1 {
			p[0] = byte(int32(v) + 128)
			continue
		}
		for j := range p {
			p[j] = byte(v >> (8 * j))
		}
	}
	return out, nil
}
