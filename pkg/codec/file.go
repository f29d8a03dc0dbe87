package codec

import (
	"fmt"
	"os"

	"github.com/chriscow/irmcodec/internal/atomicfile"
	"github.com/chriscow/irmcodec/pkg/audio/wav"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/chriscow/irmcodec/pkg/pcm"
)

// ReadFile reads a container from disk.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, irm.Wrap(irm.ErrIOFailure, "codec.ReadFile", err)
	}
	return data, nil
}

// WriteFile atomically writes a container to disk.
func WriteFile(path string, data []byte) error {
	return atomicfile.WriteBytes(path, data)
}

// CompressFile encodes the WAV file at src into a container at dst. On
// failure dst is left as it was.
func CompressFile(src, dst string, opts Options) (*Stats, error) {
	buf, err := wav.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	res, err := Encode(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", src, err)
	}
	if err := WriteFile(dst, res.Data); err != nil {
		return nil, fmt.Errorf("write %s: %w", dst, err)
	}
	return &res.Stats, nil
}

// DecompressFile decodes the container at src into a WAV file at dst.
func DecompressFile(src, dst string) (*pcm.Buffer, error) {
	data, err := ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	buf, err := Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	if err := wav.WriteFile(dst, buf); err != nil {
		return nil, fmt.Errorf("write %s: %w", dst, err)
	}
	return buf, nil
}
