package container

import (
	"github.com/chriscow/irmcodec/pkg/irm"
)

const (
	layoutSize = 2

	flagEvenFrames = 1 << 0
)

// Layout tells the decoder how the retained stream maps back to PCM frames.
// It travels at the front of the table section so the header keeps its
// fixed 36 bytes.
type Layout struct {
	Mode irm.StereoMode

	// EvenFrames is set when the original frame count was even, so the last
	// original frame was dropped by subsampling and must be restored.
	EvenFrames bool
}

func (l Layout) marshal() []byte {
	var flags byte
	if l.EvenFrames {
		flags |= flagEvenFrames
	}
	return []byte{byte(l.Mode), flags}
}

func unmarshalLayout(data []byte) (Layout, error) {
	const op = "container.ReadTable"

	if len(data) < layoutSize {
		return Layout{}, irm.Errorf(irm.ErrCorruptContainer, op, "table payload has %d bytes", len(data))
	}
	mode := irm.StereoMode(data[0])
	if !mode.Valid() {
		return Layout{}, irm.Errorf(irm.ErrCorruptContainer, op, "unknown stereo mode %d", data[0])
	}
	if data[1]&^flagEvenFrames != 0 {
		return Layout{}, irm.Errorf(irm.ErrCorruptContainer, op, "unknown layout flags %#02x", data[1])
	}
	return Layout{Mode: mode, EvenFrames: data[1]&flagEvenFrames != 0}, nil
}
