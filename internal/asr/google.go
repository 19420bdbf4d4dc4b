package asr

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"youtube2text/internal/config"
	"youtube2text/internal/media"

	"github.com/sirupsen/logrus"
)

// googleRate is the sample rate chunks are re-encoded to before upload.
const googleRate = 16000

// Google posts FLAC chunks to the speech API v2 endpoint.
type Google struct {
	Key      string
	Language string
	Endpoint string
	Client   *http.Client
	// Encode returns the chunk as FLAC bytes at googleRate.
	Encode func(ctx context.Context, path string) ([]byte, error)
	Logger logrus.FieldLogger
}

// NewGoogle builds the cloud backend from config.
func NewGoogle(cfg *config.Config, logger logrus.FieldLogger) (*Google, error) {
	if err := ValidLanguage(cfg.Google.Language); err != nil {
		return nil, err
	}
	ff := media.NewFFmpeg(cfg.Fetch.FFmpeg, nil)
	return &Google{
		Key:      cfg.Google.Key,
		Language: cfg.Google.Language,
		Endpoint: cfg.Google.Endpoint,
		Client:   &http.Client{Timeout: time.Duration(cfg.Google.TimeoutSec * float64(time.Second))},
		Encode: func(ctx context.Context, path string) ([]byte, error) {
			return ff.EncodeFLAC(ctx, path, googleRate)
		},
		Logger: logger,
	}, nil
}

// Name implements Backend.
func (g *Google) Name() string { return "google" }

// Open implements Backend. The HTTP client is shared across chunks.
func (g *Google) Open(ctx context.Context) (Session, error) {
	return googleSession{g}, nil
}

type googleSession struct{ *Google }

func (googleSession) Close() error { return nil }

type googleResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string   `json:"transcript"`
			Confidence *float64 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
}

// Recognize uploads one chunk. Empty results map to ErrNoSpeech.
func (g googleSession) Recognize(ctx context.Context, chunkPath string) (string, error) {
	audio, err := g.Encode(ctx, chunkPath)
	if err != nil {
		return "", fmt.Errorf("encode flac: %w", err)
	}
	q := url.Values{}
	q.Set("client", "chromium")
	q.Set("lang", g.Language)
	q.Set("key", g.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/x-flac; rate=%d", googleRate))

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google speech request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("google speech http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return parseGoogle(resp.Body)
}

// parseGoogle reads the newline-delimited JSON reply and returns the best
// alternative of the first non-empty result.
func parseGoogle(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp googleResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return "", fmt.Errorf("decode google response: %w", err)
		}
		if len(resp.Result) == 0 || len(resp.Result[0].Alternative) == 0 {
			continue
		}
		alts := resp.Result[0].Alternative
		best := alts[0]
		for _, a := range alts {
			if a.Confidence != nil && (best.Confidence == nil || *a.Confidence > *best.Confidence) {
				best = a
			}
		}
		if strings.TrimSpace(best.Transcript) == "" {
			return "", ErrNoSpeech
		}
		return best.Transcript, nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", ErrNoSpeech
}
