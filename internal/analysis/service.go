// Package analysis coordinates one call's journey through the service:
// transcription, concurrent evaluation, persistence, and event publishing.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/events"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/logging"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/metrics"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/orchestrator"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/store"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/transcribe"
)

// Service runs full call analyses.
type Service struct {
	orch        *orchestrator.Orchestrator
	transcriber transcribe.Transcriber
	store       *store.Store
	publisher   *events.Publisher
	metrics     *metrics.Metrics
	model       string
	log         zerolog.Logger
}

func New(orch *orchestrator.Orchestrator, transcriber transcribe.Transcriber, st *store.Store,
	publisher *events.Publisher, m *metrics.Metrics, model string, log zerolog.Logger) *Service {
	return &Service{
		orch:        orch,
		transcriber: transcriber,
		store:       st,
		publisher:   publisher,
		metrics:     m,
		model:       model,
		log:         log.With().Str("component", "analysis").Logger(),
	}
}

// AnalyzeCall analyzes one call. input is either transcript text or, when
// isAudioPath is set, a path to an audio file to transcribe first. The call
// is persisted as processing up front, then completed or failed; persistence
// problems are logged and counted but never fail an otherwise good analysis.
func (s *Service) AnalyzeCall(ctx context.Context, callID, input string, isAudioPath bool) (map[string]any, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC().Format(time.RFC3339)
	log := logging.WithCall(s.log, callID)

	// The processing row goes in before transcription so a failed call still
	// leaves a record to mark failed. For audio input the transcript column
	// briefly holds the source path; the completion upsert replaces it.
	s.persist(log, store.CallRow{
		CallID:       callID,
		RunID:        runID,
		Status:       store.StatusProcessing,
		Transcript:   input,
		StartedAtUTC: startedAt,
		Model:        s.model,
	})

	transcript := input
	if isAudioPath {
		if s.transcriber == nil {
			s.finishFailed(ctx, log, callID, runID, "no transcriber configured")
			return nil, fmt.Errorf("call %s: audio input given but no transcriber configured", callID)
		}
		res, err := s.transcriber.Transcribe(ctx, input)
		if err != nil {
			s.finishFailed(ctx, log, callID, runID, fmt.Sprintf("transcription: %v", err))
			return nil, fmt.Errorf("transcribe call %s: %w", callID, err)
		}
		transcript = res.Text
		log.Info().Int("chars", len(transcript)).Str("language", res.Language).Msg("audio transcribed")
	}
	if transcript == "" {
		s.finishFailed(ctx, log, callID, runID, "empty transcript")
		return nil, fmt.Errorf("call %s: empty transcript", callID)
	}

	results := s.orch.Analyze(ctx, transcript)
	summary, _ := results["summary_metrics"].(map[string]any)

	analysisJSON, err := json.Marshal(results)
	if err != nil {
		// Evaluator output is built from JSON-safe values; treat this as a bug
		// but keep the analysis.
		log.Error().Err(err).Msg("analysis result did not marshal")
		analysisJSON = []byte("{}")
	}

	s.persist(log, store.CallRow{
		CallID:         callID,
		RunID:          runID,
		Status:         store.StatusCompleted,
		Transcript:     transcript,
		AnalysisJSON:   string(analysisJSON),
		QAScore:        metricFloat(summary, "qa_score"),
		SOPScore:       metricFloat(summary, "sop_score"),
		SentimentScore: metricFloat(summary, "sentiment_score") / 100,
		RiskDetected:   summary["risk_detected"] == true,
		StartedAtUTC:   startedAt,
		EndedAtUTC:     time.Now().UTC().Format(time.RFC3339),
		Model:          s.model,
	})

	if err := s.publisher.Completed(ctx, callID, runID, summary); err != nil {
		s.metrics.PublishError()
		log.Warn().Err(err).Msg("completion event not published")
	}
	s.metrics.AnalysisFinished(store.StatusCompleted)
	log.Info().Str("run_id", runID).Msg("analysis completed")
	return results, nil
}

// AnalyzeCallAsync runs AnalyzeCall on its own goroutine and reports the
// outcome on the returned channel.
func (s *Service) AnalyzeCallAsync(ctx context.Context, callID, input string, isAudioPath bool) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := s.AnalyzeCall(ctx, callID, input, isAudioPath)
		done <- err
	}()
	return done
}

func (s *Service) finishFailed(ctx context.Context, log zerolog.Logger, callID, runID, reason string) {
	if err := s.store.MarkFailed(callID, reason); err != nil {
		s.metrics.PersistError()
		log.Warn().Err(err).Msg("failure not persisted")
	}
	if err := s.publisher.Failed(ctx, callID, runID, reason); err != nil {
		s.metrics.PublishError()
		log.Warn().Err(err).Msg("failure event not published")
	}
	s.metrics.AnalysisFinished(store.StatusFailed)
}

func (s *Service) persist(log zerolog.Logger, row store.CallRow) {
	if err := s.store.Upsert(row); err != nil {
		s.metrics.PersistError()
		log.Warn().Err(err).Str("status", row.Status).Msg("call row not persisted")
	}
}

func metricFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
