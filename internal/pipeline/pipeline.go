// Package pipeline runs a job from video URL to transcript file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"youtube2text/internal/asr"
	"youtube2text/internal/config"
	"youtube2text/internal/fetch"
	"youtube2text/internal/hook"
	"youtube2text/internal/media"
	"youtube2text/internal/paths"
	"youtube2text/internal/segment"
	"youtube2text/internal/transcript"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrJobLocked is returned when another job is writing the same transcript.
var ErrJobLocked = errors.New("transcript is locked by another job")

// Stage names a pipeline step.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageSegmenting  Stage = "segmenting"
	StageRecognizing Stage = "recognizing"
	StageWriting     Stage = "writing"
)

// StageError reports which step aborted a job.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Job is one transcription request.
type Job struct {
	URL      string
	Name     string // audio name or path; empty means timestamp
	TextName string // transcript name or path; empty follows the audio name
	Format   string // audio format; empty means config default
	Backend  string // asr backend; empty means config default
}

// Layout is where a job's artifacts live.
type Layout struct {
	Audio    string
	Text     string
	ChunkDir string
	Format   string
}

// Result summarizes a finished job.
type Result struct {
	Layout  Layout
	Rows    []transcript.Row
	Skipped bool // transcript already existed
}

// Fetcher persists a URL's audio at a path.
type Fetcher interface {
	Fetch(ctx context.Context, url, audioPath string) error
}

// Segmenter splits an audio artifact into chunk files.
type Segmenter interface {
	Segment(ctx context.Context, audioPath, chunkDir string) ([]segment.Chunk, error)
}

// Hook runs after a transcript is written.
type Hook interface {
	Enabled() bool
	Run(ctx context.Context, job hook.Job) error
}

// Pipeline wires the stages together.
type Pipeline struct {
	Config     *config.Config
	NewFetcher func(format string, log logrus.FieldLogger) (Fetcher, error)
	NewBackend func(name string, log logrus.FieldLogger) (asr.Backend, error)
	Segmenter  Segmenter
	Hook       Hook
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// New builds a Pipeline from config and creates the output roots.
func New(cfg *config.Config, logger logrus.FieldLogger) (*Pipeline, error) {
	if err := config.EnsureDirs(cfg); err != nil {
		return nil, fmt.Errorf("create output dirs: %w", err)
	}
	return &Pipeline{
		Config: cfg,
		NewFetcher: func(format string, log logrus.FieldLogger) (Fetcher, error) {
			return fetch.New(cfg, format, log)
		},
		NewBackend: func(name string, log logrus.FieldLogger) (asr.Backend, error) {
			return asr.New(cfg, name, log)
		},
		Segmenter: &segment.Segmenter{
			Options: segment.Options{
				MinSilenceMS:    cfg.Split.MinSilenceMS,
				SilenceOffsetDB: cfg.Split.SilenceOffsetDB,
				KeepSilenceMS:   cfg.Split.KeepSilenceMS,
				SeekStepMS:      cfg.Split.SeekStepMS,
			},
			Converter: media.NewFFmpeg(cfg.Fetch.FFmpeg, nil),
			Logger:    logger,
		},
		Hook:   hook.NewRunner(cfg, logger),
		Logger: logger,
		Now:    time.Now,
	}, nil
}

// Resolve computes the artifact paths for job.
func (p *Pipeline) Resolve(job Job, log logrus.FieldLogger) Layout {
	now := p.now()
	format := job.Format
	if format == "" {
		format = formatFromName(job.Name)
	}
	if format == "" {
		format = p.Config.Audio.Format
	}
	if allowListed(format) == "" {
		if f := formatFromName(job.Name); f != "" {
			log.Warnf("audio format %q not supported, using %s from %s", format, f, job.Name)
			format = f
		}
	}
	format = paths.NormalizeFormat(format, log)

	audio := paths.Resolve(job.Name, p.Config.AudioDir(), format, now, log)
	textName := job.TextName
	if textName == "" {
		textName = paths.Stem(audio)
	}
	return Layout{
		Audio:    audio,
		Text:     paths.Resolve(textName, p.Config.TextDir(), paths.TextExt, now, log),
		ChunkDir: paths.ChunkDir(p.Config.ChunksDir(), audio),
		Format:   format,
	}
}

// Run executes the whole job. An existing transcript short-circuits every stage.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	log := p.Logger.WithField("job", uuid.NewString())
	layout := p.Resolve(job, log)
	return p.transcribe(ctx, job, layout, log, func() error {
		return p.fetch(ctx, job, layout, log)
	})
}

// FetchAudio runs only the fetch stage and returns the audio path.
func (p *Pipeline) FetchAudio(ctx context.Context, job Job) (string, error) {
	log := p.Logger.WithField("job", uuid.NewString())
	layout := p.Resolve(job, log)
	if err := p.fetch(ctx, job, layout, log); err != nil {
		return "", err
	}
	return layout.Audio, nil
}

// TranscribeFile transcribes an existing audio file. textName and backend
// follow the Job field rules.
func (p *Pipeline) TranscribeFile(ctx context.Context, audioPath, textName, backend string) (*Result, error) {
	log := p.Logger.WithField("job", uuid.NewString())
	if !paths.Exists(audioPath) {
		return nil, fmt.Errorf("audio file %s: %w", audioPath, os.ErrNotExist)
	}
	if textName == "" {
		textName = paths.Stem(audioPath)
	}
	layout := Layout{
		Audio:    audioPath,
		Text:     paths.Resolve(textName, p.Config.TextDir(), paths.TextExt, p.now(), log),
		ChunkDir: paths.ChunkDir(p.Config.ChunksDir(), audioPath),
		Format:   strings.TrimPrefix(filepath.Ext(audioPath), "."),
	}
	return p.transcribe(ctx, Job{Backend: backend}, layout, log, nil)
}

func (p *Pipeline) fetch(ctx context.Context, job Job, layout Layout, log logrus.FieldLogger) error {
	f, err := p.NewFetcher(layout.Format, log)
	if err != nil {
		return &StageError{Stage: StageFetching, Err: err}
	}
	if err := f.Fetch(ctx, job.URL, layout.Audio); err != nil {
		return &StageError{Stage: StageFetching, Err: err}
	}
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, job Job, layout Layout, log logrus.FieldLogger, fetchFn func() error) (*Result, error) {
	if paths.Exists(layout.Text) {
		log.Infof("transcript %s already exists, nothing to do", layout.Text)
		return &Result{Layout: layout, Skipped: true}, nil
	}

	lock := flock.New(layout.Text + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrJobLocked, layout.Text)
	}
	// The lock file is never removed so every job locks the same inode.
	defer func() { _ = lock.Unlock() }()
	if paths.Exists(layout.Text) {
		log.Infof("transcript %s was written by another job, nothing to do", layout.Text)
		return &Result{Layout: layout, Skipped: true}, nil
	}

	backend, err := p.NewBackend(job.Backend, log)
	if err != nil {
		return nil, err
	}
	if fetchFn != nil {
		if err := fetchFn(); err != nil {
			return nil, err
		}
	}

	log.Infof("splitting %s", layout.Audio)
	chunks, err := p.Segmenter.Segment(ctx, layout.Audio, layout.ChunkDir)
	if err != nil {
		return nil, &StageError{Stage: StageSegmenting, Err: err}
	}
	log.Infof("%d chunks in %s", len(chunks), layout.ChunkDir)

	rows, err := p.recognize(ctx, backend, chunks, log)
	if err != nil {
		return nil, &StageError{Stage: StageRecognizing, Err: err}
	}
	if err := transcript.Write(layout.Text, rows); err != nil {
		return nil, &StageError{Stage: StageWriting, Err: err}
	}
	log.Infof("wrote %s (%d rows)", layout.Text, len(rows))

	if p.Hook != nil && p.Hook.Enabled() {
		hj := hook.Job{Transcript: layout.Text, Audio: layout.Audio, URL: job.URL, Rows: len(rows)}
		if err := p.Hook.Run(ctx, hj); err != nil {
			log.Errorf("hook: %v", err)
		}
	}
	return &Result{Layout: layout, Rows: rows}, nil
}

func (p *Pipeline) recognize(ctx context.Context, backend asr.Backend, chunks []segment.Chunk, log logrus.FieldLogger) ([]transcript.Row, error) {
	rows := make([]transcript.Row, 0, len(chunks))
	if len(chunks) == 0 {
		return rows, nil
	}
	sess, err := backend.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", backend.Name(), err)
	}
	defer func() { _ = sess.Close() }()

	for _, c := range chunks {
		text, err := asr.Text(ctx, sess, c.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		log.Debugf("%s: %s", c.Name(), text)
		rows = append(rows, transcript.Row{Text: text, Chunk: c.Name()})
	}
	return rows, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func formatFromName(name string) string {
	return allowListed(filepath.Ext(name))
}

// allowListed returns the normalized format, or "" when it is not supported.
func allowListed(format string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, ok := range paths.Formats {
		if f == ok {
			return f
		}
	}
	return ""
}
