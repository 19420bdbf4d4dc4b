//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"youtube2text/internal/config"
	"youtube2text/internal/pcm"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

// whisperBackend runs whisper.cpp locally. The model is loaded once per job.
type whisperBackend struct {
	modelPath string
	language  string
	threads   int
	logger    logrus.FieldLogger
}

func newWhisper(cfg *config.Config, logger logrus.FieldLogger) (Backend, error) {
	if strings.TrimSpace(cfg.ASR.ModelPath) == "" {
		return nil, errors.New("asr.model_path is empty; run `youtube2text setup`")
	}
	return &whisperBackend{
		modelPath: cfg.ASR.ModelPath,
		language:  strings.TrimSpace(cfg.ASR.Language),
		threads:   cfg.ASR.Threads,
		logger:    logger,
	}, nil
}

func (w *whisperBackend) Name() string { return "whisper" }

func (w *whisperBackend) Open(ctx context.Context) (Session, error) {
	model, err := whisper.New(w.modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", w.modelPath, err)
	}
	w.logger.Infof("loaded whisper model %s", w.modelPath)
	return &whisperSession{backend: w, model: model}, nil
}

type whisperSession struct {
	backend *whisperBackend
	model   whisper.Model
}

func (s *whisperSession) Close() error { return s.model.Close() }

func (s *whisperSession) Recognize(ctx context.Context, chunkPath string) (string, error) {
	buf, err := pcm.Load(chunkPath)
	if err != nil {
		return "", err
	}
	samples := pcm.MonoFloat32(buf, whisper.SampleRate)
	if len(samples) == 0 {
		return "", ErrNoSpeech
	}

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", err
	}
	if s.backend.threads > 0 {
		wctx.SetThreads(uint(s.backend.threads))
	}
	if lang := s.backend.language; lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			s.backend.logger.Warnf("set language: %v", err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		b.WriteString(seg.Text)
		if !strings.HasSuffix(seg.Text, " ") {
			b.WriteByte(' ')
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" || text == "[BLANK_AUDIO]" {
		return "", ErrNoSpeech
	}
	return text, nil
}
