// Package asr adapts speech recognition backends to per-chunk text.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"youtube2text/internal/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NoSpeech is the row text written when a chunk yields no recognizable speech.
const NoSpeech = "None"

var (
	// ErrNoSpeech is returned by a Session when the audio held nothing recognizable.
	ErrNoSpeech = errors.New("no speech recognized")
	// ErrUnknownBackend is returned for backend names that map to no engine.
	ErrUnknownBackend = errors.New("unknown asr backend")
)

// Backend is a transcription engine selected once per job.
type Backend interface {
	Name() string
	// Open prepares the engine. The returned Session is reused for every chunk.
	Open(ctx context.Context) (Session, error)
}

// Session recognizes chunk files.
type Session interface {
	Recognize(ctx context.Context, chunkPath string) (string, error)
	Close() error
}

// Names lists accepted backend tokens.
var Names = []string{"default", "google", "cloud", "openai", "whisper", "local"}

// New returns the backend named name (cfg.ASR.Backend when empty).
func New(cfg *config.Config, name string, logger logrus.FieldLogger) (Backend, error) {
	if name == "" {
		name = cfg.ASR.Backend
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "default", "google", "cloud":
		return NewGoogle(cfg, logger)
	case "openai":
		return NewOpenAI(cfg)
	case "whisper", "local":
		return newWhisper(cfg, logger)
	default:
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownBackend, name, strings.Join(Names, ", "))
	}
}

// Text recognizes one chunk and returns its row text: the formatted phrase, or
// NoSpeech when the backend reports nothing recognizable.
func Text(ctx context.Context, s Session, chunkPath string) (string, error) {
	raw, err := s.Recognize(ctx, chunkPath)
	if errors.Is(err, ErrNoSpeech) {
		return NoSpeech, nil
	}
	if err != nil {
		return "", err
	}
	out := FormatText(raw)
	if out == "" {
		return NoSpeech, nil
	}
	return out, nil
}

// FormatText capitalizes the first character and appends ". ". Blank input
// stays blank.
func FormatText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Title(language.Und, cases.NoLower).String(s[:size]) + s[size:] + ". "
}

// ValidLanguage reports whether tag is a well-formed BCP 47 language tag.
func ValidLanguage(tag string) error {
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("invalid language %q: %w", tag, err)
	}
	return nil
}
