// Package fetch turns a video URL into a local audio artifact.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"youtube2text/internal/config"
	"youtube2text/internal/media"
	"youtube2text/internal/paths"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrNoAudio is returned when a video exposes no stream carrying audio.
var ErrNoAudio = errors.New("no audio stream available")

// Stream is an opened remote media stream.
type Stream struct {
	Body  io.ReadCloser
	Title string
	Size  int64 // -1 when unknown
}

// Resolver opens the best audio stream for a URL.
type Resolver interface {
	Name() string
	Open(ctx context.Context, url string) (*Stream, error)
}

// Transcoder writes a media stream to disk in the target audio shape.
type Transcoder interface {
	TranscodeStream(ctx context.Context, src io.Reader, dst string, t media.Target) error
}

// Fetcher persists the audio track of a video.
type Fetcher struct {
	Resolver   Resolver
	Transcoder Transcoder
	Target     media.Target
	Logger     logrus.FieldLogger
}

// New builds a Fetcher from config. format overrides cfg.Audio.Format when set.
func New(cfg *config.Config, format string, logger logrus.FieldLogger) (*Fetcher, error) {
	extra, err := shlex.Split(cfg.Fetch.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parse fetch.extra_args: %w", err)
	}
	ff := media.NewFFmpeg(cfg.Fetch.FFmpeg, extra)

	var resolver Resolver
	switch strings.ToLower(strings.TrimSpace(cfg.Fetch.Resolver)) {
	case "", "builtin", "youtube":
		resolver = NewYouTube()
	case "yt-dlp", "ytdlp":
		resolver = NewYtDlp(cfg.Fetch.YtDlp)
	default:
		return nil, fmt.Errorf("unknown fetch.resolver %q (want builtin or yt-dlp)", cfg.Fetch.Resolver)
	}

	if format == "" {
		format = cfg.Audio.Format
	}
	return &Fetcher{
		Resolver:   resolver,
		Transcoder: ff,
		Target: media.Target{
			Format:     paths.NormalizeFormat(format, logger),
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		Logger: logger,
	}, nil
}

// Fetch writes the audio of url to audioPath. An existing file is left
// untouched and the network is not contacted.
func (f *Fetcher) Fetch(ctx context.Context, url, audioPath string) error {
	if paths.Exists(audioPath) {
		f.Logger.Infof("audio %s already exists, skipping download", audioPath)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	f.Logger.Infof("resolving stream for %s via %s", url, f.Resolver.Name())
	stream, err := f.Resolver.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", url, err)
	}
	defer func() { _ = stream.Body.Close() }()
	if stream.Title != "" {
		f.Logger.Infof("fetching %q", stream.Title)
	}
	if stream.Size > 0 {
		f.Logger.Debugf("stream size %s", humanize.Bytes(uint64(stream.Size)))
	}

	target := f.Target
	if target.Format == "" {
		target.Format = strings.TrimPrefix(filepath.Ext(audioPath), ".")
	}
	part := audioPath + ".part"
	if err := f.Transcoder.TranscodeStream(ctx, stream.Body, part, target); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("transcode: %w", err)
	}
	if err := os.Rename(part, audioPath); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("finalize audio: %w", err)
	}
	if info, err := os.Stat(audioPath); err == nil {
		f.Logger.Infof("saved %s (%s)", audioPath, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
