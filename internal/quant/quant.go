// Package quant centers, normalizes and quantizes a signal, and inverts those
// steps on decode.
//
// The inverse order is strict: Dequantize, Denormalize, AddMean, each using the
// scalar captured by the matching forward step.
package quant

import (
	"math"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// DefaultLevels is the number of quantization levels (8-bit).
const DefaultLevels = 256

// MaxLevels keeps every quantized value and every first difference inside a
// signed 16-bit residual.
const MaxLevels = 1 << 15

// Params are the scalars needed to invert normalization, in inversion order.
type Params struct {
	Mean   float64
	MaxAbs float64
}

// Fit measures the normalization scalars of signal. Both are rounded to
// float32, the precision they are stored at, before the peak is taken, so
// Invert undoes exactly what Apply did.
func Fit(signal []int32) (Params, error) {
	_, mean, err := ComputeMean(signal)
	if err != nil {
		return Params{}, err
	}
	m := float64(float32(mean))
	peak := float64(float32(MaxAbs(Center(signal, m))))
	return Params{Mean: m, MaxAbs: peak}, nil
}

// Apply centers and scales signal into [-1, 1].
func (p Params) Apply(signal []int32) []float64 {
	return Scale(Center(signal, p.Mean), p.MaxAbs)
}

// Invert maps normalized values back to the signal range.
func (p Params) Invert(normalized []float64) []float64 {
	return AddMean(Denormalize(normalized, p.MaxAbs), p.Mean)
}

// ComputeMean returns the signal with its mean removed, and the mean.
func ComputeMean(signal []int32) ([]float64, float64, error) {
	if len(signal) == 0 {
		return nil, 0, irm.Errorf(irm.ErrInvalidInput, "quant.ComputeMean", "empty signal")
	}

	var sum float64
	for _, v := range signal {
		sum += float64(v)
	}
	mean := sum / float64(len(signal))

	return Center(signal, mean), mean, nil
}

// Center subtracts mean from every sample.
func Center(signal []int32, mean float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[i] = float64(v) - mean
	}
	return out
}

// MaxAbs returns max(|x|) over centered.
func MaxAbs(centered []float64) float64 {
	var m float64
	for _, v := range centered {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Scale divides every value by maxAbs; a zero maxAbs, as for a silent
// signal, yields zeros.
func Scale(centered []float64, maxAbs float64) []float64 {
	out := make([]float64, len(centered))
	if maxAbs == 0 {
		return out
	}
	for i, v := range centered {
		out[i] = v / maxAbs
	}
	return out
}

// Quantize maps [-1, 1] to integer levels [0, levels-1] via
// round(((x+1)/2) * (levels-1)), rounding half away from zero. Values outside
// [-1, 1] are clamped.
func Quantize(normalized []float64, levels int) ([]int16, error) {
	if err := checkLevels("quant.Quantize", levels); err != nil {
		return nil, err
	}

	top := float64(levels - 1)
	out := make([]int16, len(normalized))
	for i, x := range normalized {
		q := math.Round((x + 1) / 2 * top)
		if q < 0 || math.IsNaN(q) {
			q = 0
		}
		if q > top {
			q = top
		}
		out[i] = int16(q)
	}
	return out, nil
}

// Dequantize maps levels back to [-1, 1].
func Dequantize(quantized []int16, levels int) ([]float64, error) {
	if err := checkLevels("quant.Dequantize", levels); err != nil {
		return nil, err
	}

	top := float64(levels - 1)
	out := make([]float64, len(quantized))
	for i, q := range quantized {
		out[i] = float64(q)/top*2 - 1
	}
	return out, nil
}

// Denormalize multiplies by the scale Scale divided by.
func Denormalize(normalized []float64, maxAbs float64) []float64 {
	out := make([]float64, len(normalized))
	for i, v := range normalized {
		out[i] = v * maxAbs
	}
	return out
}

// AddMean adds the mean captured in ComputeMean back.
func AddMean(centered []float64, mean float64) []float64 {
	out := make([]float64, len(centered))
	for i, v := range centered {
		out[i] = v + mean
	}
	return out
}

// ErrorBound is the worst-case quantization error in normalized units.
func ErrorBound(levels int) float64 {
	return 1 / (2 * float64(levels-1))
}

func checkLevels(op string, levels int) error {
	if levels <= 1 || levels > MaxLevels {
		return irm.Errorf(irm.ErrInvalidInput, op, "levels must be in (1, %d], got %d", MaxLevels, levels)
	}
	return nil
}
