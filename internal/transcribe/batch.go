package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// BatchConfig configures the submit-then-poll adapter.
type BatchConfig struct {
	BaseURL      string
	MaxAttempts  int
	PollInterval time.Duration
}

// BatchClient submits audio to an asynchronous transcription service and
// polls the job until it finishes or the poll budget runs out.
type BatchClient struct {
	cfg  BatchConfig
	http HTTPDoer
	log  zerolog.Logger
}

func NewBatchClient(cfg BatchConfig, doer HTTPDoer, log zerolog.Logger) *BatchClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &BatchClient{cfg: cfg, http: doer, log: log.With().Str("component", "batch_transcribe").Logger()}
}

type batchJob struct {
	JobID      string  `json:"job_id"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

func (b *BatchClient) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	job, err := b.submit(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(b.cfg.PollInterval):
		}

		state, err := b.poll(ctx, job.JobID)
		if err != nil {
			return Result{}, err
		}
		switch state.Status {
		case "completed":
			return Result{Text: state.Text, Language: state.Language, Confidence: state.Confidence}, nil
		case "failed":
			return Result{}, fmt.Errorf("job %s: %s: %w", job.JobID, state.Error, ErrJobFailed)
		}
		b.log.Debug().Str("job_id", job.JobID).Int("attempt", attempt).Str("status", state.Status).Msg("job still running")
	}
	return Result{}, fmt.Errorf("job %s after %d attempts: %w", job.JobID, b.cfg.MaxAttempts, ErrPollBudgetExhausted)
}

func (b *BatchClient) submit(ctx context.Context, audioPath string) (batchJob, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return batchJob{}, fmt.Errorf("read audio file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/jobs", bytes.NewReader(audio))
	if err != nil {
		return batchJob{}, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	job, err := b.doJSON(req)
	if err != nil {
		return batchJob{}, fmt.Errorf("submit transcription job: %w", err)
	}
	if job.JobID == "" {
		return batchJob{}, fmt.Errorf("submit transcription job: empty job id")
	}
	return job, nil
}

func (b *BatchClient) poll(ctx context.Context, jobID string) (batchJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return batchJob{}, fmt.Errorf("build poll request: %w", err)
	}
	job, err := b.doJSON(req)
	if err != nil {
		return batchJob{}, fmt.Errorf("poll job %s: %w", jobID, err)
	}
	return job, nil
}

func (b *BatchClient) doJSON(req *http.Request) (batchJob, error) {
	resp, err := b.http.Do(req)
	if err != nil {
		return batchJob{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return batchJob{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return batchJob{}, fmt.Errorf("service returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}
	var job batchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return batchJob{}, fmt.Errorf("decode response: %w", err)
	}
	return job, nil
}
