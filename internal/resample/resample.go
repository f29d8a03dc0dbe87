// Package resample halves the sample count before encoding and regenerates
// the dropped samples by linear interpolation on decode.
//
// Decimation works on frames: every second frame of an interleaved buffer is
// kept, so each channel is decimated by 2:1 and a single-channel stream is
// simply sampled at stride 2, offset 0. Interpolation is an approximation of
// the dropped samples, not an inverse.
package resample

import (
	"github.com/chriscow/irmcodec/pkg/irm"
)

// Subsample keeps frames 0, 2, 4, ... of an interleaved buffer.
func Subsample(samples []int32, channels int) ([]int32, error) {
	if channels < 1 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "resample.Subsample", "invalid channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "resample.Subsample",
			"%d samples do not divide into %d channels", len(samples), channels)
	}

	frames := len(samples) / channels
	kept := (frames + 1) / 2
	out := make([]int32, 0, kept*channels)
	for f := 0; f < frames; f += 2 {
		out = append(out, samples[f*channels:(f+1)*channels]...)
	}
	return out, nil
}

// InterpolatedLength returns the number of frames Interpolate restores from
// n decoded frames: the decoded frames, the n-1 midpoints between them, and
// one duplicated trailing frame when the original frame count was even.
func InterpolatedLength(n int, even bool) int {
	if n == 0 {
		return 0
	}
	if even {
		return 2 * n
	}
	return 2*n - 1
}

// Interpolate regenerates the frames dropped by Subsample. Between two
// decoded samples it inserts their midpoint rounded half away from zero. When
// even is set the original had an even frame count, whose last frame was
// dropped; it is restored by duplicating the last decoded frame.
func Interpolate(decoded []int32, channels int, even bool) ([]int32, error) {
	if channels < 1 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "resample.Interpolate", "invalid channel count %d", channels)
	}
	if len(decoded)%channels != 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "resample.Interpolate",
			"%d samples do not divide into %d channels", len(decoded), channels)
	}

	n := len(decoded) / channels
	outFrames := InterpolatedLength(n, even)
	out := make([]int32, outFrames*channels)

	for ch := 0; ch < channels; ch++ {
		for f := 0; f < n; f++ {
			cur := decoded[f*channels+ch]
			out[2*f*channels+ch] = cur
			if f+1 < n {
				next := decoded[(f+1)*channels+ch]
				out[(2*f+1)*channels+ch] = Midpoint(cur, next)
			}
		}
		if n > 0 && even {
			out[(outFrames-1)*channels+ch] = decoded[(n-1)*channels+ch]
		}
	}
	return out, nil
}

// Midpoint returns (a+b)/2 rounded half away from zero without overflow.
func Midpoint(a, b int32) int32 {
	s := int64(a) + int64(b)
	if s >= 0 {
		return int32((s + 1) / 2)
	}
	return int32(-((-s + 1) / 2))
}
