// Package delta replaces a sequence with its first differences.
//
// Residuals are int16. Both directions use the same width, so any
// two's-complement wraparound on encode is undone on decode and the round
// trip is exact for every input.
package delta

// Encode returns residual[0] = signal[0], residual[i] = signal[i] - signal[i-1].
func Encode(signal []int16) []int16 {
	out := make([]int16, len(signal))
	var prev int16
	for i, v := range signal {
		out[i] = v - prev
		prev = v
	}
	return out
}

// Decode returns the running sum of residuals.
func Decode(residuals []int16) []int16 {
	out := make([]int16, len(residuals))
	var acc int16
	for i, r := range residuals {
		acc += r
		out[i] = acc
	}
	return out
}
