//go:build !whisper

package asr

import (
	"errors"

	"youtube2text/internal/config"

	"github.com/sirupsen/logrus"
)

func newWhisper(cfg *config.Config, logger logrus.FieldLogger) (Backend, error) {
	return nil, errors.New("whisper backend not built; rebuild with -tags whisper")
}
