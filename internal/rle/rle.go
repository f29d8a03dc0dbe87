// Package rle collapses runs of identical residuals into (value, count) pairs.
package rle

import (
	"fmt"

	"github.com/chriscow/irmcodec/pkg/irm"
)

// MaxRun is the longest run a single pair may carry.
const MaxRun = 32767

// Pair is one run: Value repeated Count times, 1 <= Count <= MaxRun.
type Pair struct {
	Value int16
	Count uint16
}

// String renders the pair as "value,count".
func (p Pair) String() string {
	return fmt.Sprintf("%d,%d", p.Value, p.Count)
}

// Encode scans residuals left to right. A run longer than MaxRun is split
// into several pairs with the same value.
func Encode(residuals []int16) []Pair {
	if len(residuals) == 0 {
		return []Pair{}
	}

	pairs := make([]Pair, 0, 16)
	cur := Pair{Value: residuals[0], Count: 1}
	for _, v := range residuals[1:] {
		if v == cur.Value && cur.Count < MaxRun {
			cur.Count++
			continue
		}
		pairs = append(pairs, cur)
		cur = Pair{Value: v, Count: 1}
	}
	return append(pairs, cur)
}

// Decode expands pairs and stops at exactly total residuals. Pairs that
// overshoot total are truncated; pairs that fall short are a corrupt stream.
func Decode(pairs []Pair, total int) ([]int16, error) {
	if total < 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, "rle.Decode", "negative length %d", total)
	}

	out := make([]int16, 0, min(total, Total(pairs)))
	for i, p := range pairs {
		if p.Count == 0 || p.Count > MaxRun {
			return nil, irm.Errorf(irm.ErrCorruptContainer, "rle.Decode", "pair %d has run length %d", i, p.Count)
		}
		for c := uint16(0); c < p.Count && len(out) < total; c++ {
			out = append(out, p.Value)
		}
		if len(out) == total {
			return out, nil
		}
	}

	if len(out) != total {
		return nil, irm.Errorf(irm.ErrCorruptContainer, "rle.Decode",
			"pairs expand to %d residuals, expected %d", len(out), total)
	}
	return out, nil
}

// Total returns the number of residuals the pairs expand to.
func Total(pairs []Pair) int {
	n := 0
	for _, p := range pairs {
		n += int(p.Count)
	}
	return n
}
