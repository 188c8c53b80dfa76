// Package transcribe turns call audio into transcript text. Adapters cover a
// synchronous Whisper-style HTTP service and a submit-then-poll batch
// service; Static serves tests and offline runs.
package transcribe

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPollBudgetExhausted reports that a batch job did not finish within
	// the configured polling budget.
	ErrPollBudgetExhausted = errors.New("transcription poll budget exhausted")
	// ErrJobFailed reports that the remote transcription job itself failed.
	ErrJobFailed = errors.New("transcription job failed")
)

// Result is one finished transcription.
type Result struct {
	Text       string        `json:"text"`
	Language   string        `json:"language,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
}

// Transcriber converts an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// Static returns a fixed result for every request.
type Static struct {
	Result Result
	Err    error
}

func (s *Static) Transcribe(context.Context, string) (Result, error) {
	return s.Result, s.Err
}
