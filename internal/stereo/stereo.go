// Package stereo decorrelates two-channel audio before encoding.
//
// A stereo pair whose inter-channel difference carries little energy is
// folded to its left channel; otherwise the buffer keeps the left channel and
// the left-minus-right difference, interleaved.
package stereo

import (
	"math"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// DefaultEnergyThreshold is the energy ratio below which a stereo pair is
// folded to mono.
const DefaultEnergyThreshold = 0.2

// Metrics describes how similar the two channels of a stereo buffer are.
type Metrics struct {
	MeanAbsDiff float64 // mean |left-right|
	Correlation float64 // Pearson correlation, NaN when a channel is constant
	EnergyRatio float64 // sum((l-r)^2) / sum(((l+r)/2)^2)
}

// RecommendMono reports whether the channels are close enough to fold.
func (m Metrics) RecommendMono(threshold float64) bool {
	return m.EnergyRatio < threshold
}

// Measure computes similarity metrics over an interleaved stereo buffer.
func Measure(interleaved []int32) (Metrics, error) {
	if err := checkInterleaved("stereo.Measure", interleaved); err != nil {
		return Metrics{}, err
	}

	n := len(interleaved) / 2
	var sumAbs, sumL, sumR, diffEnergy, monoEnergy float64
	for i := 0; i < n; i++ {
		l := float64(interleaved[2*i])
		r := float64(interleaved[2*i+1])
		d := l - r
		m := (l + r) / 2
		sumAbs += math.Abs(d)
		sumL += l
		sumR += r
		diffEnergy += d * d
		monoEnergy += m * m
	}

	meanL := sumL / float64(n)
	meanR := sumR / float64(n)
	var cov, varL, varR float64
	for i := 0; i < n; i++ {
		dl := float64(interleaved[2*i]) - meanL
		dr := float64(interleaved[2*i+1]) - meanR
		cov += dl * dr
		varL += dl * dl
		varR += dr * dr
	}

	return Metrics{
		MeanAbsDiff: sumAbs / float64(n),
		Correlation: cov / math.Sqrt(varL*varR),
		EnergyRatio: energyRatio(diffEnergy, monoEnergy),
	}, nil
}

// energyRatio handles the silent-mono cases: identical channels are always a
// zero ratio, and any difference over a silent mid channel is unbounded.
func energyRatio(diff, mono float64) float64 {
	if diff == 0 {
		return 0
	}
	if mono == 0 {
		return math.Inf(1)
	}
	return diff / mono
}

// Analyze picks the stereo mode for an interleaved buffer and returns the
// processed samples. Mono returns the left channel alone; Stereo returns
// interleaved left and left-right. The input is not modified.
//
// A Stereo buffer whose difference overflows int32, which only full-scale
// 32-bit input can produce, is rejected with ErrUnsupportedFormat.
func Analyze(interleaved []int32, threshold float64) (irm.StereoMode, []int32, Metrics, error) {
	metrics, err := Measure(interleaved)
	if err != nil {
		return 0, nil, Metrics{}, err
	}

	n := len(interleaved) / 2
	if metrics.RecommendMono(threshold) {
		left := make([]int32, n)
		for i := range left {
			left[i] = interleaved[2*i]
		}
		return irm.ModeMono, left, metrics, nil
	}

	out := make([]int32, len(interleaved))
	for i := 0; i < n; i++ {
		l := interleaved[2*i]
		d := int64(l) - int64(interleaved[2*i+1])
		if d < math.MinInt32 || d > math.MaxInt32 {
			return 0, nil, Metrics{}, irm.Errorf(irm.ErrUnsupportedFormat, "stereo.Analyze",
				"left-right difference %d at frame %d does not fit in 32 bits", d, i)
		}
		out[2*i] = l
		out[2*i+1] = int32(d)
	}
	return irm.ModeStereo, out, metrics, nil
}

// Reconstruct inverts Analyze. Mono duplicates every sample into both
// channels; Stereo recovers right = left - diff for each pair, saturating at
// the int32 range. ModeSingle returns a copy of the input unchanged.
func Reconstruct(processed []int32, mode irm.StereoMode) ([]int32, error) {
	switch mode {
	case irm.ModeSingle:
		out := make([]int32, len(processed))
		copy(out, processed)
		return out, nil

	case irm.ModeMono:
		out := make([]int32, 2*len(processed))
		for i, v := range processed {
			out[2*i] = v
			out[2*i+1] = v
		}
		return out, nil

	case irm.ModeStereo:
		if len(processed)%2 != 0 {
			return nil, irm.Errorf(irm.ErrInvalidInput, "stereo.Reconstruct",
				"stereo buffer has odd length %d", len(processed))
		}
		out := make([]int32, len(processed))
		for i := 0; i+1 < len(processed); i += 2 {
			l := processed[i]
			out[i] = l
			out[i+1] = saturate(int64(l) - int64(processed[i+1]))
		}
		return out, nil
	}

	return nil, irm.Errorf(irm.ErrCorruptContainer, "stereo.Reconstruct", "unknown stereo mode %d", uint8(mode))
}

func saturate(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func checkInterleaved(op string, interleaved []int32) error {
	if len(interleaved) == 0 {
		return irm.Errorf(irm.ErrInvalidInput, op, "empty stereo buffer")
	}
	if len(interleaved)%2 != 0 {
		return irm.Errorf(irm.ErrInvalidInput, op, "stereo buffer has odd length %d", len(interleaved))
	}
	return nil
}
