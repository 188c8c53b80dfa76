// Package orchestrator fans a transcript out to the independent evaluators,
// merges their keyed results, and derives cross-evaluator summary metrics.
// One evaluator failing never takes down the others: its key carries an error
// entry and the merge continues.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/agents"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/metrics"
)

// Orchestrator runs a set of evaluators concurrently over one transcript.
type Orchestrator struct {
	evaluators []agents.Evaluator
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func New(evaluators []agents.Evaluator, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		evaluators: evaluators,
		metrics:    m,
		log:        log.With().Str("component", "orchestrator").Logger(),
	}
}

// NewDefault wires the standard five-evaluator panel: sentiment, SOP
// compliance, risk, QA scoring, and coaching.
func NewDefault(invoker llm.Invoker, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	return New([]agents.Evaluator{
		agents.NewSentiment(invoker, log),
		agents.NewSOPCompliance(invoker, log, nil),
		agents.NewRisk(invoker, log),
		agents.NewQAScore(invoker, log),
		agents.NewCoaching(invoker, log),
	}, m, log)
}

// Analyze runs every evaluator concurrently and merges the results under each
// evaluator's key. A failed or panicked evaluator contributes
// {"error": "..."} under its key instead of aborting the run. The merged map
// always carries summary_metrics and summary entries derived from whatever
// succeeded.
func (o *Orchestrator) Analyze(ctx context.Context, transcript string) map[string]any {
	results := make(map[string]any, len(o.evaluators)+2)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ev := range o.evaluators {
		wg.Add(1)
		go func(ev agents.Evaluator) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.log.Error().Str("evaluator", ev.Name()).Any("panic", r).Msg("evaluator panicked")
					o.metrics.EvaluatorFailed(ev.Name())
					mu.Lock()
					results[ev.Key()] = map[string]any{"error": fmt.Sprintf("panic: %v", r)}
					mu.Unlock()
				}
			}()

			start := time.Now()
			out, err := ev.Evaluate(ctx, transcript, nil)
			o.metrics.ObserveEvaluator(ev.Name(), time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.log.Warn().Err(err).Str("evaluator", ev.Name()).Msg("evaluator failed")
				o.metrics.EvaluatorFailed(ev.Name())
				results[ev.Key()] = map[string]any{"error": err.Error()}
				return
			}
			results[ev.Key()] = out
		}(ev)
	}
	wg.Wait()

	results["summary_metrics"] = SummaryMetrics(results)
	results["summary"] = summarize(results)
	return results
}

// SummaryMetrics derives the flat cross-evaluator metric block from a merged
// result set. Failed evaluators contribute their zero values.
func SummaryMetrics(results map[string]any) map[string]any {
	out := map[string]any{
		"sentiment_score": 0,
		"sop_score":       0,
		"qa_score":        0,
		"risk_detected":   false,
		"risk_severity":   "none",
	}
	if s, ok := section(results, "sentiment"); ok {
		out["sentiment_score"] = intOf(s["score"])
	}
	if s, ok := section(results, "sop_compliance"); ok {
		out["sop_score"] = intOf(s["adherence_score"])
	}
	if s, ok := section(results, "qa_score"); ok {
		out["qa_score"] = intOf(s["total_score"])
	}
	if s, ok := section(results, "risk_analysis"); ok {
		if b, ok := s["risk_detected"].(bool); ok {
			out["risk_detected"] = b
		}
		if sev, ok := s["severity"].(string); ok && sev != "" {
			out["risk_severity"] = sev
		}
	}
	return out
}

// section returns a result key's map unless the evaluator failed.
func section(results map[string]any, key string) (map[string]any, bool) {
	m, ok := results[key].(map[string]any)
	if !ok {
		return nil, false
	}
	if _, failed := m["error"]; failed {
		return nil, false
	}
	return m, true
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func summarize(results map[string]any) string {
	m := results["summary_metrics"].(map[string]any)
	text := fmt.Sprintf("Sentiment %d, SOP adherence %d%%, QA %d/100",
		m["sentiment_score"], m["sop_score"], m["qa_score"])
	if m["risk_detected"] == true {
		text += fmt.Sprintf("; %s risk detected", m["risk_severity"])
	} else {
		text += "; no risk detected"
	}
	if failures := failedKeys(results); len(failures) > 0 {
		text += fmt.Sprintf(" (evaluators failed: %v)", failures)
	}
	return text
}

func failedKeys(results map[string]any) []string {
	var failed []string
	for _, key := range []string{"sentiment", "sop_compliance", "risk_analysis", "qa_score", "coaching"} {
		if m, ok := results[key].(map[string]any); ok {
			if _, isErr := m["error"]; isErr {
				failed = append(failed, key)
			}
		}
	}
	return failed
}
