// Package codec compresses PCM audio into IRM containers and back.
//
// Encoding runs the stages in a fixed order: stereo analysis, 2:1
// subsampling, normalization, 8-bit quantization, delta coding, run-length
// coding and Huffman coding. The container stores every scalar the decoder
// needs, so Decompress takes no options. The codec is lossy: subsampling and
// quantization discard information that interpolation only approximates.
//
// All functions are safe for concurrent use; no state is shared between
// calls.
package codec

import (
	"bytes"
	"math"

	"github.com/chriscow/irmcodec/internal/container"
	"github.com/chriscow/irmcodec/internal/delta"
	"github.com/chriscow/irmcodec/internal/huffman"
	"github.com/chriscow/irmcodec/internal/quant"
	"github.com/chriscow/irmcodec/internal/resample"
	"github.com/chriscow/irmcodec/internal/rle"
	"github.com/chriscow/irmcodec/internal/stereo"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/chriscow/irmcodec/pkg/pcm"
)

// Result is an encoded container and what it took to produce it.
type Result struct {
	Data  []byte
	Stats Stats
}

// Compress encodes interleaved samples with DefaultOptions.
func Compress(samples []int32, sampleRate, numChannels, frameWidth int) ([]byte, error) {
	buf, err := pcm.NewBuffer(samples, sampleRate, numChannels, frameWidth)
	if err != nil {
		return nil, err
	}
	res, err := Encode(buf, DefaultOptions())
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Encode runs the full pipeline over buf. buf is read, never modified.
func Encode(buf *pcm.Buffer, opts Options) (*Result, error) {
	const op = "codec.Encode"

	if buf == nil {
		return nil, irm.Errorf(irm.ErrInvalidInput, op, "nil buffer")
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if len(buf.Samples) == 0 {
		return nil, irm.Errorf(irm.ErrInvalidInput, op, "empty signal")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	stats := Stats{
		Mode:         irm.ModeSingle,
		InputSamples: len(buf.Samples),
		InputBytes:   int64(len(buf.Samples)) * int64(buf.BitDepth()/8),
	}

	processed := buf.Samples
	if buf.NumChannels == 2 {
		mode, out, metrics, err := stereo.Analyze(buf.Samples, opts.EnergyThreshold)
		if err != nil {
			return nil, err
		}
		stats.Mode = mode
		stats.Metrics = StereoMetrics(metrics)
		processed = out
	}

	sub, err := resample.Subsample(processed, stats.Mode.StreamChannels())
	if err != nil {
		return nil, err
	}
	if uint64(len(sub)) > math.MaxUint32 {
		return nil, irm.Errorf(irm.ErrInvalidInput, op, "%d samples exceed the container limit", len(sub))
	}

	params, err := quant.Fit(sub)
	if err != nil {
		return nil, err
	}
	mean32, max32 := float32(params.Mean), float32(params.MaxAbs)

	quantized, err := quant.Quantize(params.Apply(sub), opts.Levels)
	if err != nil {
		return nil, err
	}
	pairs := rle.Encode(delta.Encode(quantized))

	table, err := huffman.Build(pairs)
	if err != nil {
		return nil, err
	}
	stream, nbits, err := table.Encode(pairs)
	if err != nil {
		return nil, err
	}

	h := container.Header{
		SampleRate:       uint32(buf.SampleRate),
		SubsampledLength: uint32(len(sub)),
		PairCount:        uint32(len(pairs)),
		MaxAmplitude:     max32,
		Mean:             mean32,
		BitDepth:         uint32(buf.BitDepth()),
		Channels:         uint32(buf.NumChannels),
		FrameRate:        uint32(buf.SampleRate),
		FrameWidth:       uint32(buf.FrameWidth),
	}

	var out bytes.Buffer
	w := container.NewWriter(&out, container.WithTableLevel(opts.TableLevel))
	if err := w.WriteHeader(h); err != nil {
		return nil, err
	}
	layout := container.Layout{Mode: stats.Mode, EvenFrames: buf.SamplesPerChannel()%2 == 0}
	if err := w.WriteTable(layout, table); err != nil {
		return nil, err
	}
	tableEnd := out.Len()
	if err := w.WriteBitstream(stream); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	stats.SubsampledSamples = len(sub)
	stats.Mean = mean32
	stats.MaxAmplitude = max32
	stats.Pairs = len(pairs)
	stats.TableEntries = table.Len()
	stats.Bits = nbits
	stats.TableBytes = tableEnd - container.HeaderSize - 4
	stats.BitstreamBytes = len(stream)
	stats.ContainerBytes = out.Len()

	return &Result{Data: out.Bytes(), Stats: stats}, nil
}

// Decompress decodes a container into a new buffer with the original sample
// rate, channel count and frame width.
func Decompress(data []byte) (*pcm.Buffer, error) {
	const op = "codec.Decompress"

	c, err := open(data)
	if err != nil {
		return nil, err
	}
	h := c.header

	pairs, err := c.table.Decode(c.stream, int(h.PairCount))
	if err != nil {
		return nil, err
	}
	residuals, err := rle.Decode(pairs, int(h.SubsampledLength))
	if err != nil {
		return nil, err
	}

	deq, err := quant.Dequantize(delta.Decode(residuals), quant.DefaultLevels)
	if err != nil {
		return nil, err
	}
	params := quant.Params{Mean: float64(h.Mean), MaxAbs: float64(h.MaxAmplitude)}
	values := params.Invert(deq)

	// The difference channel spans twice the sample range, so intermediate
	// values are only clamped to 32 bits here.
	stream := make([]int32, len(values))
	for i, v := range values {
		stream[i] = pcm.Clamp(int64(math.Round(v)), 32)
	}

	frames, err := resample.Interpolate(stream, c.layout.Mode.StreamChannels(), c.layout.EvenFrames)
	if err != nil {
		return nil, irm.Wrap(irm.ErrCorruptContainer, op, err)
	}
	samples, err := stereo.Reconstruct(frames, c.layout.Mode)
	if err != nil {
		return nil, err
	}

	depth := int(h.BitDepth)
	for i, v := range samples {
		samples[i] = pcm.Clamp(int64(v), depth)
	}
	return pcm.NewBuffer(samples, int(h.SampleRate), int(h.Channels), int(h.FrameWidth))
}

// parsed holds the sections of a container that passed validation.
type parsed struct {
	header container.Header
	layout container.Layout
	table  *huffman.Table
	stream []byte
}

func open(data []byte) (*parsed, error) {
	const op = "codec.open"

	r := container.NewReader(data)
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	layout, table, err := r.ReadTable()
	if err != nil {
		return nil, err
	}
	stream, err := r.ReadBitstream()
	if err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	mode := layout.Mode
	if (h.Channels == 1) != (mode == irm.ModeSingle) {
		return nil, irm.Errorf(irm.ErrCorruptContainer, op, "%s stream in a %d-channel container", mode, h.Channels)
	}
	if h.SubsampledLength == 0 {
		return nil, irm.Errorf(irm.ErrCorruptContainer, op, "empty signal")
	}
	if int(h.SubsampledLength)%mode.StreamChannels() != 0 {
		return nil, irm.Errorf(irm.ErrCorruptContainer, op,
			"%d samples do not divide into %s frames", h.SubsampledLength, mode)
	}
	if uint64(h.PairCount)*rle.MaxRun < uint64(h.SubsampledLength) {
		return nil, irm.Errorf(irm.ErrCorruptContainer, op,
			"%d pairs cannot cover %d samples", h.PairCount, h.SubsampledLength)
	}
	if uint64(h.PairCount) > uint64(len(stream))*8 {
		return nil, irm.Errorf(irm.ErrCorruptContainer, op,
			"%d pairs cannot fit in %d bitstream bytes", h.PairCount, len(stream))
	}

	return &parsed{header: h, layout: layout, table: table, stream: stream}, nil
}
