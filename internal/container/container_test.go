package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/chriscow/irmcodec/internal/huffman"
	"github.com/chriscow/irmcodec/internal/rle"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/klauspost/compress/zstd"
	"github.com/matryer/is"
)

func testHeader() Header {
	return Header{
		SampleRate:       44100,
		SubsampledLength: 6,
		PairCount:        2,
		MaxAmplitude:     1234.5,
		Mean:             -3.25,
		BitDepth:         16,
		Channels:         2,
		FrameRate:        44100,
		FrameWidth:       4,
	}
}

func testTable(t *testing.T) (*huffman.Table, []rle.Pair) {
	t.Helper()
	pairs := rle.Encode([]int16{5, 5, 5, 5, 7, 7})
	table, err := huffman.Build(pairs)
	if err != nil {
		t.Fatal(err)
	}
	return table, pairs
}

func writeContainer(t *testing.T, h Header, layout Layout) []byte {
	t.Helper()
	is := is.New(t)

	table, pairs := testTable(t)
	stream, _, err := table.Encode(pairs)
	is.NoErr(err)

	var buf bytes.Buffer
	w := NewWriter(&buf, WithTableLevel(zstd.SpeedBestCompression))
	is.NoErr(w.WriteHeader(h))
	is.Equal(w.State(), StateHeader)
	is.NoErr(w.WriteTable(layout, table))
	is.Equal(w.State(), StateTable)
	is.NoErr(w.WriteBitstream(stream))
	is.NoErr(w.Close())
	is.Equal(w.State(), StateClosed)
	is.Equal(w.Written(), int64(buf.Len()))
	return buf.Bytes()
}

func TestHeader_Layout(t *testing.T) {
	is := is.New(t)

	data, err := testHeader().MarshalBinary()
	is.NoErr(err)
	is.Equal(len(data), HeaderSize)
	is.Equal(binary.BigEndian.Uint32(data[0:]), uint32(44100)) // sample_rate first
	is.Equal(binary.BigEndian.Uint32(data[4:]), uint32(6))
	is.Equal(binary.BigEndian.Uint32(data[8:]), uint32(2))
	is.Equal(math.Float32frombits(binary.BigEndian.Uint32(data[12:])), float32(1234.5))
	is.Equal(math.Float32frombits(binary.BigEndian.Uint32(data[16:])), float32(-3.25))
	is.Equal(binary.BigEndian.Uint32(data[32:]), uint32(4)) // frame_width last

	var back Header
	is.NoErr(back.UnmarshalBinary(data))
	is.Equal(back, testHeader())

	is.True(irm.IsCorrupt(back.UnmarshalBinary(data[:35])))
}

func TestHeader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Header)
		wantErr error
	}{
		{"valid", func(*Header) {}, nil},
		{"three channels", func(h *Header) { h.Channels = 3; h.FrameWidth = 6 }, irm.ErrUnsupportedFormat},
		{"12-bit", func(h *Header) { h.BitDepth = 12 }, irm.ErrUnsupportedFormat},
		{"frame width", func(h *Header) { h.FrameWidth = 3 }, irm.ErrCorruptContainer},
		{"zero rate", func(h *Header) { h.SampleRate = 0 }, irm.ErrCorruptContainer},
		{"nan max", func(h *Header) { h.MaxAmplitude = float32(math.NaN()) }, irm.ErrCorruptContainer},
		{"negative max", func(h *Header) { h.MaxAmplitude = -1 }, irm.ErrCorruptContainer},
		{"inf mean", func(h *Header) { h.Mean = float32(math.Inf(1)) }, irm.ErrCorruptContainer},
		{"too many pairs", func(h *Header) { h.PairCount = 7 }, irm.ErrCorruptContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHeader()
			tt.mutate(&h)
			err := h.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)

	want := Layout{Mode: irm.ModeStereo, EvenFrames: true}
	data := writeContainer(t, testHeader(), want)
	table, pairs := testTable(t)

	r := NewReader(data)
	h, err := r.ReadHeader()
	is.NoErr(err)
	is.Equal(h, testHeader())

	layout, got, err := r.ReadTable()
	is.NoErr(err)
	is.Equal(layout, want)
	is.Equal(got.Entries(), table.Entries())

	stream, err := r.ReadBitstream()
	is.NoErr(err)
	is.NoErr(r.Close())

	decoded, err := got.Decode(stream, int(h.PairCount))
	is.NoErr(err)
	is.Equal(decoded, pairs)
}

func TestWriter_OutOfOrder(t *testing.T) {
	is := is.New(t)

	table, _ := testTable(t)
	w := NewWriter(&bytes.Buffer{})

	is.True(irm.IsInvalidInput(w.WriteTable(Layout{Mode: irm.ModeMono}, table))) // header first
	is.True(irm.IsInvalidInput(w.WriteBitstream(nil)))
	is.True(irm.IsInvalidInput(w.Close()))
	is.Equal(w.State(), StateIdle)

	is.NoErr(w.WriteHeader(testHeader()))
	is.True(irm.IsInvalidInput(w.WriteHeader(testHeader()))) // only once
	is.True(irm.IsInvalidInput(w.WriteTable(Layout{Mode: irm.StereoMode(5)}, table)))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriter_IOFailure(t *testing.T) {
	is := is.New(t)

	w := NewWriter(failingWriter{})
	err := w.WriteHeader(testHeader())
	is.True(irm.IsIOFailure(err))
	is.Equal(w.State(), StateIdle)
}

func TestReader_OutOfOrder(t *testing.T) {
	is := is.New(t)

	r := NewReader(writeContainer(t, testHeader(), Layout{Mode: irm.ModeMono}))
	_, _, err := r.ReadTable()
	is.True(irm.IsInvalidInput(err))
	_, err = r.ReadBitstream()
	is.True(irm.IsInvalidInput(err))
}

func TestReader_Corrupt(t *testing.T) {
	good := writeContainer(t, testHeader(), Layout{Mode: irm.ModeMono})

	setTableLen := func(n uint32) []byte {
		data := append([]byte(nil), good...)
		binary.BigEndian.PutUint32(data[HeaderSize:], n)
		return data
	}

	withLayout := func(layout ...byte) []byte {
		table, _ := testTable(t)
		serialized, err := table.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		compressed, err := compressZstd(append(layout, serialized...), zstd.SpeedDefault)
		if err != nil {
			t.Fatal(err)
		}
		data := append([]byte(nil), good[:HeaderSize]...)
		data = binary.BigEndian.AppendUint32(data, uint32(len(compressed)))
		return append(data, compressed...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", good[:20]},
		{"missing table length", good[:HeaderSize+2]},
		{"table length past end", setTableLen(1 << 20)},
		{"table not zstd", setTableLen(3)},
		{"bad stereo mode", withLayout(9, 0)},
		{"unknown flag", withLayout(byte(irm.ModeMono), 0x80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			_, err := r.ReadHeader()
			if err == nil {
				_, _, err = r.ReadTable()
			}
			if !irm.IsCorrupt(err) {
				t.Errorf("expected corrupt container error, got %v", err)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	is := is.New(t)

	for _, l := range []Layout{
		{Mode: irm.ModeSingle},
		{Mode: irm.ModeMono, EvenFrames: true},
		{Mode: irm.ModeStereo, EvenFrames: true},
	} {
		back, err := unmarshalLayout(l.marshal())
		is.NoErr(err)
		is.Equal(back, l)
	}

	_, err := unmarshalLayout([]byte{1})
	is.True(irm.IsCorrupt(err))
}

func TestState_String(t *testing.T) {
	is := is.New(t)
	is.Equal(StateTable.String(), "table written")
	is.Equal(State(42).String(), "state(42)")
}

func TestZstd(t *testing.T) {
	is := is.New(t)

	payload := bytes.Repeat([]byte("irm table "), 50)
	compressed, err := compressZstd(payload, zstd.SpeedDefault)
	is.NoErr(err)

	// decoders come from an empty pool first, then are reused
	for i := 0; i < 3; i++ {
		dec, err := getDecoder()
		is.NoErr(err)
		is.True(dec != nil)
		zstdDecPool.Put(dec)

		back, err := decompressZstd(compressed)
		is.NoErr(err)
		is.Equal(back, payload)
	}

	_, err = decompressZstd([]byte("not zstd"))
	is.True(err != nil)
}
