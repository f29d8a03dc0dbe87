package container

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxTableSize bounds the decompressed table section.
const maxTableSize = 64 << 20

var zstdDecPool sync.Pool

func getDecoder() (*zstd.Decoder, error) {
	if dec, ok := zstdDecPool.Get().(*zstd.Decoder); ok {
		return dec, nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxTableSize))
}

func compressZstd(data []byte, level zstd.EncoderLevel) ([]byte, error) {
	var buf bytes.Buffer

	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := getDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecPool.Put(dec)

	return dec.DecodeAll(data, nil)
}
