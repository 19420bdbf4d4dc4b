// Package segment splits an audio artifact into chunk files at silences.
package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"youtube2text/internal/media"
	"youtube2text/internal/pcm"

	"github.com/go-audio/audio"
	"github.com/sirupsen/logrus"
)

// Options tunes silence detection.
type Options struct {
	MinSilenceMS    int
	SilenceOffsetDB float64 // threshold = clip dBFS minus this
	KeepSilenceMS   int
	SeekStepMS      int
}

// DefaultOptions mirrors the long-standing split settings.
func DefaultOptions() Options {
	return Options{MinSilenceMS: 500, SilenceOffsetDB: 14, KeepSilenceMS: 500, SeekStepMS: 1}
}

// Chunk is one exported slice of the source audio.
type Chunk struct {
	Index   int // 1-based
	Path    string
	StartMS int
	EndMS   int
}

// Name is the chunk file name without directory.
func (c Chunk) Name() string { return filepath.Base(c.Path) }

// Converter re-encodes a WAV file into another container.
type Converter interface {
	ConvertFile(ctx context.Context, src, dst string, t media.Target) error
}

// Segmenter exports silence-delimited chunks.
type Segmenter struct {
	Options   Options
	Converter Converter // used for non-WAV chunk formats
	Logger    logrus.FieldLogger
}

// Segment loads audioPath, splits it and writes chunk<N>.<ext> files into
// chunkDir, returning them in source order. The chunk format follows the
// source file's extension.
func (s *Segmenter) Segment(ctx context.Context, audioPath, chunkDir string) ([]Chunk, error) {
	buf, err := pcm.Load(audioPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(audioPath), "."))

	ranges := SplitRanges(buf, s.Options)
	s.logf("split %s into %d chunks (%d ms)", filepath.Base(audioPath), len(ranges), pcm.DurationMS(buf))

	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := Chunk{
			Index:   i + 1,
			Path:    filepath.Join(chunkDir, fmt.Sprintf("chunk%d.%s", i+1, ext)),
			StartMS: r.StartMS,
			EndMS:   r.EndMS,
		}
		if err := s.export(ctx, pcm.Slice(buf, r.StartMS, r.EndMS), chunk.Path, ext); err != nil {
			return nil, fmt.Errorf("export %s: %w", chunk.Name(), err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (s *Segmenter) export(ctx context.Context, buf *audio.IntBuffer, path, ext string) error {
	if ext == "wav" {
		return pcm.WriteWAV(path, buf)
	}
	if s.Converter == nil {
		return fmt.Errorf("no converter for %s chunks", ext)
	}
	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp.wav"
	defer func() { _ = os.Remove(tmp) }()
	if err := pcm.WriteWAV(tmp, buf); err != nil {
		return err
	}
	return s.Converter.ConvertFile(ctx, tmp, path, media.Target{Format: ext})
}

func (s *Segmenter) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Debugf(format, args...)
	}
}
