package codec

import (
	"time"

	"github.com/chriscow/irmcodec/internal/resample"
	"github.com/chriscow/irmcodec/pkg/irm"
)

// Info is what a container declares about itself, read without decoding the
// bitstream.
type Info struct {
	SampleRate       int
	Channels         int
	BitDepth         int
	FrameRate        int
	FrameWidth       int
	SubsampledLength int
	PairCount        int
	MaxAmplitude     float32
	Mean             float32

	Mode           irm.StereoMode
	TableEntries   int
	BitstreamBytes int
	ContainerBytes int

	// Frames is the per-channel length Decompress will produce.
	Frames int
}

// Duration is the playback length of the decoded audio.
func (i Info) Duration() time.Duration {
	if i.SampleRate == 0 {
		return 0
	}
	return time.Duration(i.Frames) * time.Second / time.Duration(i.SampleRate)
}

// Inspect validates the header and code table of data and reports them.
func Inspect(data []byte) (*Info, error) {
	c, err := open(data)
	if err != nil {
		return nil, err
	}
	h := c.header
	frames := resample.InterpolatedLength(int(h.SubsampledLength)/c.layout.Mode.StreamChannels(), c.layout.EvenFrames)

	return &Info{
		SampleRate:       int(h.SampleRate),
		Channels:         int(h.Channels),
		BitDepth:         int(h.BitDepth),
		FrameRate:        int(h.FrameRate),
		FrameWidth:       int(h.FrameWidth),
		SubsampledLength: int(h.SubsampledLength),
		PairCount:        int(h.PairCount),
		MaxAmplitude:     h.MaxAmplitude,
		Mean:             h.Mean,
		Mode:             c.layout.Mode,
		TableEntries:     c.table.Len(),
		BitstreamBytes:   len(c.stream),
		ContainerBytes:   len(data),
		Frames:           frames,
	}, nil
}
