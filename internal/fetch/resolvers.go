package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"youtube2text/internal/media"

	"github.com/kkdai/youtube/v2"
)

// YouTube resolves streams in-process with kkdai/youtube.
type YouTube struct {
	Client *youtube.Client
}

// NewYouTube returns the builtin resolver.
func NewYouTube() *YouTube {
	return &YouTube{Client: &youtube.Client{}}
}

// Name implements Resolver.
func (y *YouTube) Name() string { return "builtin" }

// Open picks the best audio-only format, falling back to any format that
// carries audio channels.
func (y *YouTube) Open(ctx context.Context, url string) (*Stream, error) {
	video, err := y.Client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, err
	}
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil, ErrNoAudio
	}
	formats.Sort()
	format := formats[0]

	body, size, err := y.Client.GetStreamContext(ctx, video, &format)
	if err != nil {
		return nil, fmt.Errorf("open stream (itag %d): %w", format.ItagNo, err)
	}
	return &Stream{Body: body, Title: video.Title, Size: size}, nil
}

// YtDlp resolves streams by piping `yt-dlp -o -` output.
type YtDlp struct {
	Bin    string
	Runner media.Runner
}

// NewYtDlp returns a resolver using bin (default "yt-dlp").
func NewYtDlp(bin string) *YtDlp {
	if strings.TrimSpace(bin) == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{Bin: bin, Runner: media.ExecRunner{}}
}

// Name implements Resolver.
func (y *YtDlp) Name() string { return "yt-dlp" }

// Open starts yt-dlp and returns its stdout. The process error, if any, is
// delivered to the reader once the output is drained.
func (y *YtDlp) Open(ctx context.Context, url string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	cmd := media.Command{
		Name:   y.Bin,
		Args:   []string{"--quiet", "--no-playlist", "-f", "bestaudio/best", "-o", "-", url},
		Stdout: pw,
	}
	go func() {
		pw.CloseWithError(y.Runner.Run(ctx, cmd))
	}()
	return &Stream{Body: &cancelReader{PipeReader: pr, cancel: cancel}, Size: -1}, nil
}

type cancelReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (r *cancelReader) Close() error {
	r.cancel()
	return r.PipeReader.Close()
}
