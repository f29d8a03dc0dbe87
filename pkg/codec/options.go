package codec

import (
	"math"

	"github.com/chriscow/irmcodec/internal/quant"
	"github.com/chriscow/irmcodec/internal/stereo"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/klauspost/compress/zstd"
)

// Options tunes encoding. Decoding needs no options: everything it depends
// on is stored in the container.
type Options struct {
	// EnergyThreshold is the difference/mid energy ratio below which stereo
	// input is folded to its left channel.
	EnergyThreshold float64

	// Levels is the quantizer resolution. The container format stores 8-bit
	// levels, so only quant.DefaultLevels is accepted.
	Levels int

	// TableLevel is the zstd level used for the code table section.
	TableLevel zstd.EncoderLevel
}

// DefaultOptions returns the options used by Compress.
func DefaultOptions() Options {
	return Options{
		EnergyThreshold: stereo.DefaultEnergyThreshold,
		Levels:          quant.DefaultLevels,
		TableLevel:      zstd.SpeedDefault,
	}
}

// Validate checks every field.
func (o Options) Validate() error {
	const op = "codec.Options"

	if math.IsNaN(o.EnergyThreshold) || o.EnergyThreshold < 0 {
		return irm.Errorf(irm.ErrInvalidInput, op, "energy threshold must be >= 0, got %v", o.EnergyThreshold)
	}
	if o.Levels != quant.DefaultLevels {
		return irm.Errorf(irm.ErrUnsupportedFormat, op, "container stores %d levels, got %d",
			quant.DefaultLevels, o.Levels)
	}
	if o.TableLevel < zstd.SpeedFastest || o.TableLevel > zstd.SpeedBestCompression {
		return irm.Errorf(irm.ErrInvalidInput, op, "unknown table compression level %d", o.TableLevel)
	}
	return nil
}

// ParseTableLevel maps a zstd level name ("fastest", "default", "better",
// "best") to its EncoderLevel.
func ParseTableLevel(name string) (zstd.EncoderLevel, error) {
	ok, level := zstd.EncoderLevelFromString(name)
	if !ok {
		return 0, irm.Errorf(irm.ErrInvalidInput, "codec.ParseTableLevel", "unknown table level %q", name)
	}
	return level, nil
}
