package pcm

import (
	"fmt"
	"time"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// Buffer holds interleaved PCM audio as signed integers.
// len(Samples) is a multiple of NumChannels; FrameWidth is the byte size of
// one frame (one sample for every channel) in the original encoding, so the
// bit depth is FrameWidth / NumChannels * 8.
//
// The codec never retains a Buffer past a call.
type Buffer struct {
	Samples     []int32 // interleaved, even indices left for stereo
	SampleRate  int
	NumChannels int // 1 or 2
	FrameWidth  int // bytes per frame
}

// NewBuffer creates a Buffer after validating the format fields.
func NewBuffer(samples []int32, sampleRate, numChannels, frameWidth int) (*Buffer, error) {
	b := &Buffer{
		Samples:     samples,
		SampleRate:  sampleRate,
		NumChannels: numChannels,
		FrameWidth:  frameWidth,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the format fields describe audio the codec supports.
func (b *Buffer) Validate() error {
	if b.NumChannels != 1 && b.NumChannels != 2 {
		return irm.Errorf(irm.ErrUnsupportedFormat, "pcm.Validate",
			"only mono and stereo are supported, got %d channels", b.NumChannels)
	}
	if b.SampleRate <= 0 {
		return irm.Errorf(irm.ErrInvalidInput, "pcm.Validate", "sample rate must be positive, got %d", b.SampleRate)
	}
	if b.FrameWidth <= 0 || b.FrameWidth%b.NumChannels != 0 {
		return irm.Errorf(irm.ErrInvalidInput, "pcm.Validate",
			"frame width %d is not a multiple of %d channels", b.FrameWidth, b.NumChannels)
	}
	switch b.BitDepth() {
	case 8, 16, 24, 32:
	default:
		return irm.Errorf(irm.ErrUnsupportedFormat, "pcm.Validate", "unsupported bit depth %d", b.BitDepth())
	}
	if len(b.Samples)%b.NumChannels != 0 {
		return irm.Errorf(irm.ErrInvalidInput, "pcm.Validate",
			"%d samples do not divide into %d channels", len(b.Samples), b.NumChannels)
	}
	return nil
}

// BitDepth returns the number of bits per sample.
func (b *Buffer) BitDepth() int {
	if b.NumChannels == 0 {
		return 0
	}
	return b.FrameWidth / b.NumChannels * 8
}

// SamplesPerChannel returns the number of frames in the buffer.
func (b *Buffer) SamplesPerChannel() int {
	if b.NumChannels == 0 {
		return 0
	}
	return len(b.Samples) / b.NumChannels
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.SamplesPerChannel()) * time.Second / time.Duration(b.SampleRate)
}

// Clone creates a deep copy of the Buffer.
func (b *Buffer) Clone() *Buffer {
	samples := make([]int32, len(b.Samples))
	copy(samples, b.Samples)

	return &Buffer{
		Samples:     samples,
		SampleRate:  b.SampleRate,
		NumChannels: b.NumChannels,
		FrameWidth:  b.FrameWidth,
	}
}

// Channel returns a copy of channel ch de-interleaved.
func (b *Buffer) Channel(ch int) []int32 {
	out := make([]int32, 0, b.SamplesPerChannel())
	for i := ch; i < len(b.Samples); i += b.NumChannels {
		out = append(out, b.Samples[i])
	}
	return out
}

// String summarizes the format.
func (b *Buffer) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d-bit, %d frames", b.SampleRate, b.NumChannels, b.BitDepth(), b.SamplesPerChannel())
}

// Range returns the inclusive sample range for a signed bit depth.
func Range(bitDepth int) (lo, hi int32) {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 32
	}
	hi = int32(uint32(1)<<(bitDepth-1) - 1)
	return -hi - 1, hi
}

// Clamp limits v to the range representable at bitDepth.
func Clamp(v int64, bitDepth int) int32 {
	lo, hi := Range(bitDepth)
	if v < int64(lo) {
		return lo
	}
	if v > int64(hi) {
		return hi
	}
	return int32(v)
}
