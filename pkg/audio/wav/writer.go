package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chriscow/irmcodec/internal/atomicfile"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/chriscow/irmcodec/pkg/pcm"
)

const headerSize = 44

// Writer writes PCM WAV data. The RIFF and data sizes are patched in Close.
type Writer struct {
	w              io.WriteSeeker
	closer         io.Closer
	sampleRate     uint32
	numChannels    uint16
	bitsPerSample  uint16
	samplesWritten uint32
}

// NewWriter creates a new WAV file writer
func NewWriter(filename string, sampleRate uint32, numChannels, bitsPerSample uint16) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, irm.Wrap(irm.ErrIOFailure, "wav.NewWriter", err)
	}

	writer, err := NewWriterTo(file, sampleRate, numChannels, bitsPerSample)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.closer = file
	return writer, nil
}

// NewWriterTo writes a placeholder header to w. The caller keeps ownership
// of w; Close only patches the sizes.
func NewWriterTo(w io.WriteSeeker, sampleRate uint32, numChannels, bitsPerSample uint16) (*Writer, error) {
	// validates the format the same way a buffer would
	if _, err := pcm.NewBuffer(nil, int(sampleRate), int(numChannels), int(numChannels)*int(bitsPerSample)/8); err != nil {
		return nil, err
	}
	if bitsPerSample%8 != 0 {
		return nil, irm.Errorf(irm.ErrUnsupportedFormat, "wav.NewWriterTo", "%d-bit samples", bitsPerSample)
	}

	writer := &Writer{
		w:             w,
		sampleRate:    sampleRate,
		numChannels:   numChannels,
		bitsPerSample: bitsPerSample,
	}

	if err := writer.writeHeader(); err != nil {
		return nil, irm.Wrap(irm.ErrIOFailure, "wav.NewWriterTo", fmt.Errorf("failed to write WAV header: %w", err))
	}
	return writer, nil
}

// WriteSamples appends interleaved samples. The count must cover whole frames.
func (w *Writer) WriteSamples(samples []int32) error {
	const op = "wav.WriteSamples"

	if len(samples)%int(w.numChannels) != 0 {
		return irm.Errorf(irm.ErrInvalidInput, op, "%d samples is not a whole number of %d-channel frames",
			len(samples), w.numChannels)
	}
	data, err := pcm.Encode(samples, int(w.bitsPerSample))
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return irm.Wrap(irm.ErrIOFailure, op, err)
	}
	w.samplesWritten += uint32(len(samples) / int(w.numChannels))
	return nil
}

// WriteSineWave writes a sine wave of the specified frequency and duration
// at half of full scale on every channel.
func (w *Writer) WriteSineWave(frequency float64, durationMs int) error {
	samplesPerChannel := int(w.sampleRate) * durationMs / 1000
	_, hi := pcm.Range(int(w.bitsPerSample))

	samples := make([]int32, 0, samplesPerChannel*int(w.numChannels))
	for i := 0; i < samplesPerChannel; i++ {
		t := float64(i) / float64(w.sampleRate)
		sample := int32(math.Sin(2*math.Pi*frequency*t) * float64(hi) * 0.5)
		for ch := 0; ch < int(w.numChannels); ch++ {
			samples = append(samples, sample)
		}
	}
	return w.WriteSamples(samples)
}

// Close finalizes the WAV file by updating the header with correct sizes
func (w *Writer) Close() error {
	if w.w == nil {
		return nil
	}

	dataSize := w.samplesWritten * uint32(w.numChannels) * uint32(w.bitsPerSample) / 8
	if dataSize&1 == 1 {
		// RIFF chunks are word aligned
		if _, err := w.w.Write([]byte{0}); err != nil {
			return irm.Wrap(irm.ErrIOFailure, "wav.Close", err)
		}
	}
	chunkSize := headerSize - 8 + dataSize + dataSize&1

	if err := w.patch(4, chunkSize); err != nil {
		return err
	}
	if err := w.patch(40, dataSize); err != nil {
		return err
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return irm.Wrap(irm.ErrIOFailure, "wav.Close", err)
	}

	w.w = nil
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			return irm.Wrap(irm.ErrIOFailure, "wav.Close", err)
		}
	}
	return nil
}

// WriteFile atomically writes buf as a WAV file.
func WriteFile(filename string, buf *pcm.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	return atomicfile.Write(filename, func(f *os.File) error {
		w, err := NewWriterTo(f, uint32(buf.SampleRate), uint16(buf.NumChannels), uint16(buf.BitDepth()))
		if err != nil {
			return err
		}
		if err := w.WriteSamples(buf.Samples); err != nil {
			return err
		}
		return w.Close()
	})
}

func (w *Writer) patch(offset int64, v uint32) error {
	if _, err := w.w.Seek(offset, io.SeekStart); err != nil {
		return irm.Wrap(irm.ErrIOFailure, "wav.Close", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, v); err != nil {
		return irm.Wrap(irm.ErrIOFailure, "wav.Close", err)
	}
	return nil
}

// writeHeader writes the initial WAV header
func (w *Writer) writeHeader() error {
	byteRate := w.sampleRate * uint32(w.numChannels) * uint32(w.bitsPerSample) / 8
	blockAlign := w.numChannels * w.bitsPerSample / 8

	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 0) // patched in Close
	hdr = append(hdr, "WAVE"...)
	hdr = append(hdr, "fmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, formatPCM)
	hdr = binary.LittleEndian.AppendUint16(hdr, w.numChannels)
	hdr = binary.LittleEndian.AppendUint32(hdr, w.sampleRate)
	hdr = binary.LittleEndian.AppendUint32(hdr, byteRate)
	hdr = binary.LittleEndian.AppendUint16(hdr, blockAlign)
	hdr = binary.LittleEndian.AppendUint16(hdr, w.bitsPerSample)
	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 0) // patched in Close

	_, err := w.w.Write(hdr)
	return err
}
