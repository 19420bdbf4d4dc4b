// Package pcm loads audio artifacts into interleaved integer sample buffers and
// provides the loudness and slicing helpers the segmenter and recognizers need.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned for files that are neither WAV nor FLAC.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Load decodes the audio file at path, choosing the decoder by extension.
func Load(path string) (*audio.IntBuffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path)
	case ".flac":
		return loadFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func loadWAV(path string) (*audio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", filepath.Base(path))
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	buf.SourceBitDepth = int(d.BitDepth)
	return buf, nil
}

func loadFLAC(path string) (*audio.IntBuffer, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flac: %w", err)
	}
	defer stream.Close()

	nch := int(stream.Info.NChannels)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nch,
			SampleRate:  int(stream.Info.SampleRate),
		},
		SourceBitDepth: int(stream.Info.BitsPerSample),
		Data:           make([]int, 0, int(stream.Info.NSamples)*nch),
	}
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode flac: %w", err)
		}
		n := frame.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			for ch := 0; ch < nch; ch++ {
				buf.Data = append(buf.Data, int(frame.Subframes[ch].Samples[i]))
			}
		}
	}
	return buf, nil
}

// WriteWAV encodes buf as PCM WAV at path.
func WriteWAV(path string, buf *audio.IntBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, buf.Format.SampleRate, bitDepth(buf), buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}

// Frames is the number of sample frames in buf.
func Frames(buf *audio.IntBuffer) int {
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return 0
	}
	return len(buf.Data) / buf.Format.NumChannels
}

// DurationMS is the clip length in milliseconds, rounded.
func DurationMS(buf *audio.IntBuffer) int {
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return 0
	}
	return int(math.Round(float64(Frames(buf)) * 1000 / float64(buf.Format.SampleRate)))
}

// MaxAmplitude is the largest absolute sample value for the buffer's bit depth.
func MaxAmplitude(buf *audio.IntBuffer) float64 {
	return float64(int64(1) << (bitDepth(buf) - 1))
}

// FrameAt converts a millisecond offset to a frame index clamped to the buffer.
func FrameAt(buf *audio.IntBuffer, ms int) int {
	f := int(int64(ms) * int64(buf.Format.SampleRate) / 1000)
	if f < 0 {
		return 0
	}
	if n := Frames(buf); f > n {
		return n
	}
	return f
}

// Slice returns the [startMS, endMS) portion of buf. The data is shared.
func Slice(buf *audio.IntBuffer, startMS, endMS int) *audio.IntBuffer {
	ch := buf.Format.NumChannels
	s, e := FrameAt(buf, startMS), FrameAt(buf, endMS)
	if e < s {
		e = s
	}
	return &audio.IntBuffer{
		Format:         buf.Format,
		SourceBitDepth: buf.SourceBitDepth,
		Data:           buf.Data[s*ch : e*ch],
	}
}

// DBFS is the loudness of the whole buffer relative to full scale. Pure
// silence is -Inf.
func DBFS(buf *audio.IntBuffer) float64 {
	if len(buf.Data) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range buf.Data {
		v := float64(s)
		sum += v * v
	}
	return RatioToDB(math.Sqrt(sum/float64(len(buf.Data))) / MaxAmplitude(buf))
}

// RatioToDB converts an amplitude ratio to decibels.
func RatioToDB(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(ratio)
}

// DBToRatio converts decibels to an amplitude ratio.
func DBToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// Energy answers RMS queries over millisecond windows in constant time.
type Energy struct {
	buf    *audio.IntBuffer
	prefix []float64 // prefix[i] = sum of squared samples in frames [0, i)
}

// NewEnergy precomputes cumulative energy for buf.
func NewEnergy(buf *audio.IntBuffer) *Energy {
	ch := buf.Format.NumChannels
	n := Frames(buf)
	prefix := make([]float64, n+1)
	for i := 0; i < n; i++ {
		var frame float64
		for c := 0; c < ch; c++ {
			v := float64(buf.Data[i*ch+c])
			frame += v * v
		}
		prefix[i+1] = prefix[i] + frame
	}
	return &Energy{buf: buf, prefix: prefix}
}

// RMS returns the root mean square amplitude over [startMS, endMS).
func (e *Energy) RMS(startMS, endMS int) float64 {
	s, end := FrameAt(e.buf, startMS), FrameAt(e.buf, endMS)
	if end <= s {
		return 0
	}
	count := float64((end - s) * e.buf.Format.NumChannels)
	return math.Sqrt((e.prefix[end] - e.prefix[s]) / count)
}

// MonoFloat32 downmixes buf to mono, normalizes to [-1, 1] and resamples to
// sampleRate.
func MonoFloat32(buf *audio.IntBuffer, sampleRate int) []float32 {
	ch := buf.Format.NumChannels
	n := Frames(buf)
	scale := float32(MaxAmplitude(buf))
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += float32(buf.Data[i*ch+c])
		}
		mono[i] = sum / float32(ch) / scale
	}
	return resampleLinear(mono, buf.Format.SampleRate, sampleRate)
}

func resampleLinear(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

func bitDepth(buf *audio.IntBuffer) int {
	if buf.SourceBitDepth > 0 {
		return buf.SourceBitDepth
	}
	return 16
}
