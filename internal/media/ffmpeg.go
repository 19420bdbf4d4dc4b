// Package media wraps the ffmpeg binary used for transcoding.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Command describes one external process invocation.
type Command struct {
	Name   string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner executes commands via os/exec. Stderr is captured and attached to
// the returned error.
type ExecRunner struct{}

// Run executes cmd and waits for it to finish.
func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("%s exited %d: %s", c.Name, exitErr.ExitCode(), lastLine(msg))
		}
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// FFmpeg converts audio between containers.
type FFmpeg struct {
	Bin       string
	ExtraArgs []string
	Runner    Runner
}

// Target is the output audio shape.
type Target struct {
	Format     string // flac, wav
	SampleRate int
	Channels   int
}

// NewFFmpeg returns an FFmpeg using bin (default "ffmpeg") and the exec runner.
func NewFFmpeg(bin string, extra []string) *FFmpeg {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Bin: bin, ExtraArgs: extra, Runner: ExecRunner{}}
}

// TranscodeStream reads media from src and writes audio in the target shape to dst.
func (f *FFmpeg) TranscodeStream(ctx context.Context, src io.Reader, dst string, t Target) error {
	args := f.buildArgs("pipe:0", dst, t)
	return f.Runner.Run(ctx, Command{Name: f.Bin, Args: args, Stdin: src})
}

// ConvertFile converts the audio file at src to dst in the target shape.
func (f *FFmpeg) ConvertFile(ctx context.Context, src, dst string, t Target) error {
	args := f.buildArgs(src, dst, t)
	return f.Runner.Run(ctx, Command{Name: f.Bin, Args: args})
}

// EncodeFLAC returns src as FLAC bytes at the given sample rate, mono.
func (f *FFmpeg) EncodeFLAC(ctx context.Context, src string, sampleRate int) ([]byte, error) {
	var out bytes.Buffer
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "flac",
		"-f", "flac",
		"pipe:1",
	}
	if err := f.Runner.Run(ctx, Command{Name: f.Bin, Args: args, Stdout: &out}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (f *FFmpeg) buildArgs(input, output string, t Target) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if input != "pipe:0" {
		args = append(args, "-nostdin")
	}
	args = append(args, "-i", input, "-vn")
	if t.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(t.Channels))
	}
	if t.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(t.SampleRate))
	}
	args = append(args, "-c:a", Codec(t.Format), "-f", t.Format)
	args = append(args, f.ExtraArgs...)
	return append(args, output)
}

// Codec returns the ffmpeg audio codec for an allow-listed format.
func Codec(format string) string {
	switch format {
	case "wav":
		return "pcm_s16le"
	default:
		return "flac"
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
