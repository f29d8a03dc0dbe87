package codec

import (
	"fmt"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// StereoMetrics reports how alike the two input channels were. It is zero
// for single-channel input.
type StereoMetrics struct {
	MeanAbsDiff float64
	Correlation float64
	EnergyRatio float64
}

// Stats describes one encode.
type Stats struct {
	Mode    irm.StereoMode
	Metrics StereoMetrics

	InputSamples      int // interleaved samples in the input buffer
	InputBytes        int64
	SubsampledSamples int
	Mean              float32
	MaxAmplitude      float32

	Pairs        int // RLE pairs
	TableEntries int
	Bits         int // Huffman bitstream length in bits

	TableBytes     int // compressed table section, without its length prefix
	BitstreamBytes int
	ContainerBytes int
}

// Ratio returns InputBytes / ContainerBytes.
func (s Stats) Ratio() float64 {
	if s.ContainerBytes == 0 {
		return 0
	}
	return float64(s.InputBytes) / float64(s.ContainerBytes)
}

// ReductionRate returns how much smaller compressed is than original, in
// percent. It is negative when the output grew.
func ReductionRate(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-compressed) / float64(original) * 100
}

// FormatSize renders a byte count with a binary unit suffix.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit && n > -unit {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	i := -1
	for (value >= unit || value <= -unit) && i < len(suffixes)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, suffixes[i])
}
