package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"youtube2text/internal/config"
)

// OpenAI posts chunks to an OpenAI-compatible audio transcription endpoint.
type OpenAI struct {
	APIKey   string
	Model    string
	Endpoint string
	Client   *http.Client
}

// NewOpenAI builds the backend; an API key is required.
func NewOpenAI(cfg *config.Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return nil, errors.New("openai backend needs openai.api_key or OPENAI_API_KEY")
	}
	return &OpenAI{
		APIKey:   cfg.OpenAI.APIKey,
		Model:    cfg.OpenAI.Model,
		Endpoint: cfg.OpenAI.Endpoint,
		Client:   &http.Client{Timeout: time.Duration(cfg.OpenAI.TimeoutSec * float64(time.Second))},
	}, nil
}

// Name implements Backend.
func (o *OpenAI) Name() string { return "openai" }

// Open implements Backend.
func (o *OpenAI) Open(ctx context.Context) (Session, error) {
	return openAISession{o}, nil
}

type openAISession struct{ *OpenAI }

func (openAISession) Close() error { return nil }

type openAIResp struct {
	Text string `json:"text"`
}

// Recognize uploads the chunk file as multipart form data.
func (o openAISession) Recognize(ctx context.Context, chunkPath string) (string, error) {
	f, err := os.Open(chunkPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", o.Model); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(chunkPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var or openAIResp
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if strings.TrimSpace(or.Text) == "" {
		return "", ErrNoSpeech
	}
	return or.Text, nil
}
