package irm

import "fmt"

// StereoMode records how a stereo input was folded before encoding.
type StereoMode uint8

const (
	// ModeSingle marks single-channel input; the stereo stage was bypassed.
	ModeSingle StereoMode = 0
	// ModeMono marks a stereo input folded to its left channel.
	ModeMono StereoMode = 1
	// ModeStereo marks a stereo input kept as interleaved left / (left-right).
	ModeStereo StereoMode = 2
)

// String returns the mode name.
func (m StereoMode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMono:
		return "mono"
	case ModeStereo:
		return "stereo"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m StereoMode) Valid() bool {
	return m <= ModeStereo
}

// StreamChannels is the number of interleaved channels carried through the
// pipeline after the stereo stage.
func (m StereoMode) StreamChannels() int {
	if m == ModeStereo {
		return 2
	}
	return 1
}
