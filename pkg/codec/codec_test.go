package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chriscow/irmcodec/internal/container"
	"github.com/chriscow/irmcodec/internal/quant"
	"github.com/chriscow/irmcodec/internal/resample"
	"github.com/chriscow/irmcodec/pkg/audio/wav"
	"github.com/chriscow/irmcodec/pkg/irm"
	"github.com/chriscow/irmcodec/pkg/pcm"
	"github.com/klauspost/compress/zstd"
	"github.com/matryer/is"
	"golang.org/x/sync/errgroup"
)

// tone builds frames of a sine at freq Hz. In stereo the right channel is
// the quadrature (cosine) of the left.
func tone(frames, channels, sampleRate int, freq, amp float64) []int32 {
	out := make([]int32, 0, frames*channels)
	for i := 0; i < frames; i++ {
		phase := 2 * math.Pi * freq * float64(i) / float64(sampleRate)
		out = append(out, int32(math.Round(amp*math.Sin(phase))))
		if channels == 2 {
			out = append(out, int32(math.Round(amp*math.Cos(phase))))
		}
	}
	return out
}

func rms(samples []int32) float64 {
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func maxError(a, b []int32) float64 {
	var worst float64
	for i := range a {
		if d := math.Abs(float64(a[i]) - float64(b[i])); d > worst {
			worst = d
		}
	}
	return worst
}

func TestCompress_StereoScenario(t *testing.T) {
	is := is.New(t)

	// left climbs by 2, right falls by 2: [100,100,102,98,104,96,...]
	samples := make([]int32, 0, 40)
	for i := int32(0); i < 20; i++ {
		samples = append(samples, 100+2*i, 100-2*i)
	}

	data, err := Compress(samples, 44100, 2, 4)
	is.NoErr(err)
	is.Equal(binary.BigEndian.Uint32(data[0:4]), uint32(44100)) // header sample_rate

	buf, err := Decompress(data)
	is.NoErr(err)
	is.Equal(buf.NumChannels, 2)
	is.Equal(buf.SampleRate, 44100)
	is.Equal(buf.FrameWidth, 4)
	is.Equal(len(buf.Samples), len(samples))

	fullScale := 32768.0
	is.True(math.Abs(rms(buf.Samples)-rms(samples)) <= fullScale/255) // RMS within one quantization step of full scale

	info, err := Inspect(data)
	is.NoErr(err)
	is.Equal(info.Mode, irm.ModeMono) // energy ratio 0.1976 folds to mono
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		channels   int
		depth      int
		sampleRate int
		amp        float64
		tolerance  float64
		mode       irm.StereoMode
	}{
		{"16-bit mono", 800, 1, 16, 8000, 10000, 110, irm.ModeSingle},
		{"16-bit mono odd frames", 801, 1, 16, 8000, 10000, 110, irm.ModeSingle},
		{"16-bit stereo", 800, 2, 16, 8000, 8000, 250, irm.ModeStereo},
		{"8-bit mono", 400, 1, 8, 8000, 100, 3, irm.ModeSingle},
		{"24-bit stereo", 1001, 2, 24, 8000, 4e6, 1.25e5, irm.ModeStereo},
		{"32-bit mono", 600, 1, 32, 8000, 1e9, 1.1e7, irm.ModeSingle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			samples := tone(tt.frames, tt.channels, tt.sampleRate, 100, tt.amp)
			in, err := pcm.NewBuffer(samples, tt.sampleRate, tt.channels, tt.channels*tt.depth/8)
			is.NoErr(err)

			res, err := Encode(in, DefaultOptions())
			is.NoErr(err)
			is.Equal(res.Stats.Mode, tt.mode)

			out, err := Decompress(res.Data)
			is.NoErr(err)
			is.Equal(out.SampleRate, in.SampleRate)
			is.Equal(out.NumChannels, in.NumChannels)
			is.Equal(out.FrameWidth, in.FrameWidth)
			is.Equal(len(out.Samples), len(in.Samples))

			// An even-length original loses its last frame to subsampling;
			// it comes back as a copy of the last decoded frame.
			interior := len(in.Samples)
			if tt.frames%2 == 0 {
				interior -= tt.channels
				last := out.Samples[interior:]
				prev := out.Samples[interior-tt.channels : interior]
				is.Equal(last, prev) // trailing frame duplicates its predecessor
			}

			if worst := maxError(in.Samples[:interior], out.Samples[:interior]); worst > tt.tolerance {
				t.Errorf("max sample error %v exceeds %v", worst, tt.tolerance)
			}
		})
	}
}

func TestRoundTrip_LoudStereo32(t *testing.T) {
	is := is.New(t)

	// right is an inverted, quieter copy of left, so left-right reaches
	// 1.4x the left amplitude without leaving int32
	const frames = 601
	samples := make([]int32, 0, 2*frames)
	for i := 0; i < frames; i++ {
		l := 1.5e9 * math.Sin(2*math.Pi*100*float64(i)/8000)
		samples = append(samples, int32(math.Round(l)), int32(math.Round(-0.4*l)))
	}

	in, err := pcm.NewBuffer(samples, 8000, 2, 8)
	is.NoErr(err)
	res, err := Encode(in, DefaultOptions())
	is.NoErr(err)
	is.Equal(res.Stats.Mode, irm.ModeStereo)

	out, err := Decompress(res.Data)
	is.NoErr(err)
	is.Equal(len(out.Samples), len(samples))
	if worst := maxError(samples, out.Samples); worst > 3e7 {
		t.Errorf("max sample error %v exceeds 3e7", worst)
	}
}

func TestRoundTrip_Degenerate(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int32
		channels int
		want     []int32
	}{
		{"single sample", []int32{1234}, 1, []int32{1234}},
		{"two samples", []int32{-7, 9}, 1, []int32{-7, -7}},
		{"constant", []int32{42, 42, 42, 42, 42}, 1, []int32{42, 42, 42, 42, 42}},
		{"silent stereo", []int32{0, 0, 0, 0}, 2, []int32{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			data, err := Compress(tt.samples, 16000, tt.channels, 2*tt.channels)
			is.NoErr(err)
			buf, err := Decompress(data)
			is.NoErr(err)
			is.Equal(buf.Samples, tt.want)
		})
	}
}

func TestMetadataIdempotence(t *testing.T) {
	is := is.New(t)

	samples := tone(500, 1, 8000, 250, 3000)
	for i := range samples {
		samples[i] += 321 // DC offset
	}
	in, err := pcm.NewBuffer(samples, 8000, 1, 2)
	is.NoErr(err)

	res, err := Encode(in, DefaultOptions())
	is.NoErr(err)

	sub, err := resample.Subsample(samples, 1)
	is.NoErr(err)
	_, mean, err := quant.ComputeMean(sub)
	is.NoErr(err)
	wantMax := quant.MaxAbs(quant.Center(sub, float64(float32(mean))))

	info, err := Inspect(res.Data)
	is.NoErr(err)
	is.Equal(info.Mean, float32(mean))
	is.Equal(info.MaxAmplitude, float32(wantMax))
	is.Equal(info.Mean, res.Stats.Mean)
	is.Equal(info.MaxAmplitude, res.Stats.MaxAmplitude)

	is.Equal(info.SampleRate, 8000)
	is.Equal(info.FrameRate, 8000)
	is.Equal(info.BitDepth, 16)
	is.Equal(info.SubsampledLength, 250)
	is.Equal(info.PairCount, res.Stats.Pairs)
	is.Equal(info.TableEntries, res.Stats.TableEntries)
	is.Equal(info.Frames, 500)
	is.Equal(info.Duration().Milliseconds(), int64(62)) // 500 frames at 8 kHz
}

func TestStereoDecision(t *testing.T) {
	is := is.New(t)

	// identical channels fold to mono and come back identical
	left := tone(300, 1, 8000, 200, 5000)
	samples := make([]int32, 0, 600)
	for _, v := range left {
		samples = append(samples, v, v)
	}
	in, err := pcm.NewBuffer(samples, 8000, 2, 4)
	is.NoErr(err)

	res, err := Encode(in, DefaultOptions())
	is.NoErr(err)
	is.Equal(res.Stats.Mode, irm.ModeMono)
	is.Equal(res.Stats.Metrics.EnergyRatio, 0.0)
	is.Equal(res.Stats.SubsampledSamples, 150)

	out, err := Decompress(res.Data)
	is.NoErr(err)
	for i := 0; i < len(out.Samples); i += 2 {
		is.Equal(out.Samples[i], out.Samples[i+1])
	}

	// a zero threshold never folds
	opts := DefaultOptions()
	opts.EnergyThreshold = 0
	res, err = Encode(in, opts)
	is.NoErr(err)
	is.Equal(res.Stats.Mode, irm.ModeStereo)
	is.Equal(res.Stats.SubsampledSamples, 300)
}

func TestStats(t *testing.T) {
	is := is.New(t)

	in, err := pcm.NewBuffer(tone(1000, 2, 8000, 300, 6000), 8000, 2, 4)
	is.NoErr(err)

	opts := DefaultOptions()
	opts.TableLevel = zstd.SpeedBestCompression
	res, err := Encode(in, opts)
	is.NoErr(err)

	s := res.Stats
	is.Equal(s.InputSamples, 2000)
	is.Equal(s.InputBytes, int64(4000))
	is.Equal(s.ContainerBytes, len(res.Data))
	is.Equal(s.ContainerBytes, container.HeaderSize+4+s.TableBytes+s.BitstreamBytes)
	is.Equal(s.BitstreamBytes, (s.Bits+7)/8)
	is.True(s.Pairs >= s.TableEntries)
	is.Equal(s.Ratio(), float64(s.InputBytes)/float64(s.ContainerBytes))
}

func TestReductionRate(t *testing.T) {
	is := is.New(t)
	is.Equal(ReductionRate(1000, 250), 75.0)
	is.Equal(ReductionRate(100, 150), -50.0)
	is.Equal(ReductionRate(0, 10), 0.0)
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KiB"},
		{1536, "1.50 KiB"},
		{1 << 20, "1.00 MiB"},
		{5 << 30, "5.00 GiB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.n); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestEncode_Rejects(t *testing.T) {
	valid, err := pcm.NewBuffer([]int32{1, 2, 3, 4}, 8000, 1, 2)
	if err != nil {
		t.Fatal(err)
	}

	withOpts := func(mutate func(*Options)) Options {
		o := DefaultOptions()
		mutate(&o)
		return o
	}

	tests := []struct {
		name    string
		buf     *pcm.Buffer
		opts    Options
		wantErr error
	}{
		{"nil buffer", nil, DefaultOptions(), irm.ErrInvalidInput},
		{"empty", &pcm.Buffer{SampleRate: 8000, NumChannels: 1, FrameWidth: 2}, DefaultOptions(), irm.ErrInvalidInput},
		{"three channels", &pcm.Buffer{Samples: []int32{1, 2, 3}, SampleRate: 8000, NumChannels: 3, FrameWidth: 6}, DefaultOptions(), irm.ErrUnsupportedFormat},
		{"odd stereo", &pcm.Buffer{Samples: []int32{1, 2, 3}, SampleRate: 8000, NumChannels: 2, FrameWidth: 4}, DefaultOptions(), irm.ErrInvalidInput},
		{"32-bit stereo difference overflow", &pcm.Buffer{Samples: []int32{math.MaxInt32, math.MinInt32, math.MinInt32, math.MaxInt32, 0, 0, 5, -5}, SampleRate: 8000, NumChannels: 2, FrameWidth: 8}, DefaultOptions(), irm.ErrUnsupportedFormat},
		{"nan threshold", valid, withOpts(func(o *Options) { o.EnergyThreshold = math.NaN() }), irm.ErrInvalidInput},
		{"16 levels", valid, withOpts(func(o *Options) { o.Levels = 16 }), irm.ErrUnsupportedFormat},
		{"bad table level", valid, withOpts(func(o *Options) { o.TableLevel = 99 }), irm.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.buf, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	mono, err := Compress(tone(200, 1, 8000, 100, 9000), 8000, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	folded, err := Compress([]int32{5, 5, 9, 9, 1, 1, 7, 7}, 8000, 2, 4)
	if err != nil {
		t.Fatal(err)
	}

	patch := func(src []byte, offset int, v uint32) []byte {
		data := append([]byte(nil), src...)
		binary.BigEndian.PutUint32(data[offset:], v)
		return data
	}

	// a folded stereo container relabelled as a 1-channel file
	relabelled := patch(patch(folded, 24, 1), 32, 2)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", mono[:30]},
		{"table cut", mono[:container.HeaderSize+6]},
		{"bitstream cut", mono[:len(mono)-8]},
		{"length too long", patch(mono, 4, 101)},
		{"mode mismatch", relabelled},
		{"zero length", patch(patch(mono, 4, 0), 8, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.data)
			if !irm.IsCorrupt(err) {
				t.Errorf("expected corrupt container error, got %v", err)
			}
		})
	}
}

func TestConcurrentEncodeIsDeterministic(t *testing.T) {
	is := is.New(t)

	in, err := pcm.NewBuffer(tone(2000, 2, 16000, 440, 12000), 16000, 2, 4)
	is.NoErr(err)
	want, err := Encode(in, DefaultOptions())
	is.NoErr(err)

	results := make([][]byte, 8)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			res, err := Encode(in, DefaultOptions())
			if err != nil {
				return err
			}
			results[i] = res.Data
			_, err = Decompress(res.Data)
			return err
		})
	}
	is.NoErr(g.Wait())

	for _, got := range results {
		is.True(bytes.Equal(got, want.Data))
	}
}

func TestFiles(t *testing.T) {
	is := is.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	packed := filepath.Join(dir, "in.irm")
	dst := filepath.Join(dir, "out.wav")

	in, err := pcm.NewBuffer(tone(4000, 2, 16000, 500, 7000), 16000, 2, 4)
	is.NoErr(err)
	is.NoErr(wav.WriteFile(src, in))

	stats, err := CompressFile(src, packed, DefaultOptions())
	is.NoErr(err)

	data, err := ReadFile(packed)
	is.NoErr(err)
	is.Equal(len(data), stats.ContainerBytes)

	out, err := DecompressFile(packed, dst)
	is.NoErr(err)

	back, err := wav.ReadFile(dst)
	is.NoErr(err)
	is.Equal(back.Samples, out.Samples)
	is.Equal(back.SampleRate, 16000)
	is.Equal(back.NumChannels, 2)

	// a failed compress leaves no output behind
	missing := filepath.Join(dir, "missing.wav")
	_, err = CompressFile(missing, filepath.Join(dir, "missing.irm"), DefaultOptions())
	is.True(irm.IsIOFailure(err))
	_, err = os.Stat(filepath.Join(dir, "missing.irm"))
	is.True(os.IsNotExist(err))
}

func TestParseTableLevel(t *testing.T) {
	is := is.New(t)

	level, err := ParseTableLevel("best")
	is.NoErr(err)
	is.Equal(level, zstd.SpeedBestCompression)

	_, err = ParseTableLevel("ludicrous")
	is.True(irm.IsInvalidInput(err))
}
