package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// HTTPDoer is the slice of *http.Client the adapters use.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WhisperConfig configures the synchronous Whisper-style adapter.
type WhisperConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WhisperClient posts audio as multipart form data to a Whisper-compatible
// /v1/audio/transcriptions endpoint.
type WhisperClient struct {
	cfg  WhisperConfig
	http HTTPDoer
	log  zerolog.Logger
}

func NewWhisperClient(cfg WhisperConfig, doer HTTPDoer, log zerolog.Logger) *WhisperClient {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &WhisperClient{cfg: cfg, http: doer, log: log.With().Str("component", "whisper").Logger()}
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return Result{}, fmt.Errorf("copy audio into request: %w", err)
	}
	if err := writer.WriteField("model", w.cfg.Model); err != nil {
		return Result{}, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("finish multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return Result{}, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post transcription request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	var decoded whisperResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}
	w.log.Debug().Str("file", filepath.Base(audioPath)).Int("chars", len(decoded.Text)).Msg("transcription finished")
	return Result{
		Text:     decoded.Text,
		Language: decoded.Language,
		Duration: time.Duration(decoded.Duration * float64(time.Second)),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
