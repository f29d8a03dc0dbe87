package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/chriscow/irmcodec/pkg/pcm"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Header represents a WAV file header
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	BlockAlign    uint16
	DataSize      uint32
}

// FrameWidth returns the bytes per frame across all channels.
func (h Header) FrameWidth() int {
	return int(h.NumChannels) * int(h.BitsPerSample) / 8
}

// Reader reads PCM WAV data into sample buffers.
type Reader struct {
	r      io.ReadSeeker
	closer io.Closer
	header Header
}

// NewReader opens filename and parses its header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, irm.Wrap(irm.ErrIOFailure, "wav.NewReader", err)
	}

	reader, err := NewReaderFrom(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// NewReaderFrom parses the header from r and leaves it positioned at the
// first sample. The caller keeps ownership of r.
func NewReaderFrom(r io.ReadSeeker) (*Reader, error) {
	reader := &Reader{r: r}
	if err := reader.readHeader(); err != nil {
		return nil, err
	}
	return reader, nil
}

// Header returns the WAV file header information
func (r *Reader) Header() Header {
	return r.header
}

// ReadBuffer reads the whole data chunk. A data chunk cut short by the end of
// the file yields the complete frames that are present.
func (r *Reader) ReadBuffer() (*pcm.Buffer, error) {
	const op = "wav.ReadBuffer"

	data, err := io.ReadAll(io.LimitReader(r.r, int64(r.header.DataSize)))
	if err != nil {
		return nil, irm.Wrap(irm.ErrIOFailure, op, err)
	}

	frameWidth := r.header.FrameWidth()
	data = data[:len(data)-len(data)%frameWidth]

	samples, err := pcm.Decode(data, int(r.header.BitsPerSample))
	if err != nil {
		return nil, err
	}
	return pcm.NewBuffer(samples, int(r.header.SampleRate), int(r.header.NumChannels), frameWidth)
}

// Close closes the WAV file
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// ReadFile loads an entire WAV file.
func ReadFile(filename string) (*pcm.Buffer, error) {
	r, err := NewReader(filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadBuffer()
}

// readHeader reads and validates the WAV file header
func (r *Reader) readHeader() error {
	var riffHeader [12]byte
	if err := r.readFull(riffHeader[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}

	if string(riffHeader[0:4]) != "RIFF" {
		return irm.Errorf(irm.ErrUnsupportedFormat, "wav.readHeader", "not a valid RIFF file")
	}
	if string(riffHeader[8:12]) != "WAVE" {
		return irm.Errorf(irm.ErrUnsupportedFormat, "wav.readHeader", "not a valid WAVE file")
	}

	r.header.ChunkSize = binary.LittleEndian.Uint32(riffHeader[4:8])

	if err := r.readFmtChunk(); err != nil {
		return err
	}
	if err := r.readDataChunk(); err != nil {
		return err
	}

	switch r.header.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return irm.Errorf(irm.ErrUnsupportedFormat, "wav.readHeader",
			"only 8, 16, 24 and 32-bit samples are supported, got %d-bit", r.header.BitsPerSample)
	}
	if r.header.NumChannels != 1 && r.header.NumChannels != 2 {
		return irm.Errorf(irm.ErrUnsupportedFormat, "wav.readHeader",
			"only mono and stereo are supported, got %d channels", r.header.NumChannels)
	}
	if r.header.SampleRate == 0 {
		return irm.Errorf(irm.ErrInvalidInput, "wav.readHeader", "sample rate is zero")
	}
	if int(r.header.BlockAlign) != r.header.FrameWidth() {
		return irm.Errorf(irm.ErrInvalidInput, "wav.readHeader",
			"block align %d does not match %d channels of %d-bit", r.header.BlockAlign,
			r.header.NumChannels, r.header.BitsPerSample)
	}

	return nil
}

// readFmtChunk reads the format chunk
func (r *Reader) readFmtChunk() error {
	for {
		id, size, err := r.readChunkHeader()
		if err != nil {
			return err
		}

		if id != "fmt " {
			if err := r.skip(size); err != nil {
				return err
			}
			continue
		}

		if size < 16 {
			return irm.Errorf(irm.ErrInvalidInput, "wav.readFmtChunk", "fmt chunk too small: %d bytes", size)
		}

		var fmtData [16]byte
		if err := r.readFull(fmtData[:]); err != nil {
			return fmt.Errorf("failed to read fmt data: %w", err)
		}

		r.header.AudioFormat = binary.LittleEndian.Uint16(fmtData[0:2])
		if r.header.AudioFormat != formatPCM && r.header.AudioFormat != formatExtensible {
			return irm.Errorf(irm.ErrUnsupportedFormat, "wav.readFmtChunk",
				"only PCM format is supported, got format %d", r.header.AudioFormat)
		}

		r.header.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
		r.header.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
		r.header.BlockAlign = binary.LittleEndian.Uint16(fmtData[12:14])
		r.header.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])

		return r.skip(size - 16)
	}
}

// readDataChunk positions the reader at the start of the audio data.
func (r *Reader) readDataChunk() error {
	for {
		id, size, err := r.readChunkHeader()
		if err != nil {
			return err
		}
		if id == "data" {
			r.header.DataSize = size
			return nil
		}
		if err := r.skip(size); err != nil {
			return err
		}
	}
}

func (r *Reader) readChunkHeader() (string, uint32, error) {
	var chunkHeader [8]byte
	if err := r.readFull(chunkHeader[:]); err != nil {
		return "", 0, fmt.Errorf("failed to read chunk header: %w", err)
	}
	return string(chunkHeader[0:4]), binary.LittleEndian.Uint32(chunkHeader[4:8]), nil
}

// skip moves past a chunk body, including the pad byte of odd-sized chunks.
func (r *Reader) skip(size uint32) error {
	n := int64(size) + int64(size&1)
	if n == 0 {
		return nil
	}
	if _, err := r.r.Seek(n, io.SeekCurrent); err != nil {
		return irm.Wrap(irm.ErrIOFailure, "wav.skip", err)
	}
	return nil
}

func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return irm.Wrap(irm.ErrInvalidInput, "wav.read", err)
		}
		return irm.Wrap(irm.ErrIOFailure, "wav.read", err)
	}
	return nil
}
