package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/agents"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

type stubEvaluator struct {
	name string
	key  string
	out  map[string]any
	err  error
	boom bool
}

func (s *stubEvaluator) Name() string { return s.name }
func (s *stubEvaluator) Key() string  { return s.key }

func (s *stubEvaluator) Evaluate(context.Context, string, map[string]any) (map[string]any, error) {
	if s.boom {
		panic("synthetic panic")
	}
	return s.out, s.err
}

func TestAnalyzeMergesUnderKeys(t *testing.T) {
	o := New([]agents.Evaluator{
		&stubEvaluator{name: "a", key: "sentiment", out: map[string]any{"score": 40, "label": "Positive"}},
		&stubEvaluator{name: "b", key: "qa_score", out: map[string]any{"total_score": 90}},
	}, nil, zerolog.Nop())

	results := o.Analyze(context.Background(), "transcript")
	if results["sentiment"].(map[string]any)["score"] != 40 {
		t.Fatalf("sentiment result not merged: %v", results["sentiment"])
	}
	metrics := results["summary_metrics"].(map[string]any)
	if metrics["sentiment_score"] != 40 || metrics["qa_score"] != 90 {
		t.Fatalf("unexpected summary metrics: %v", metrics)
	}
}

func TestAnalyzeIsolatesFailures(t *testing.T) {
	o := New([]agents.Evaluator{
		&stubEvaluator{name: "a", key: "sentiment", out: map[string]any{"score": -30}},
		&stubEvaluator{name: "b", key: "risk_analysis", err: errors.New("backend exploded")},
		&stubEvaluator{name: "c", key: "qa_score", boom: true},
	}, nil, zerolog.Nop())

	results := o.Analyze(context.Background(), "transcript")

	if results["sentiment"].(map[string]any)["score"] != -30 {
		t.Fatalf("healthy evaluator must survive failures: %v", results["sentiment"])
	}
	if results["risk_analysis"].(map[string]any)["error"] != "backend exploded" {
		t.Fatalf("failed evaluator must report its error: %v", results["risk_analysis"])
	}
	if _, ok := results["qa_score"].(map[string]any)["error"]; !ok {
		t.Fatalf("panicked evaluator must report an error entry: %v", results["qa_score"])
	}

	metrics := results["summary_metrics"].(map[string]any)
	if metrics["sentiment_score"] != -30 {
		t.Fatalf("metrics must use the surviving results: %v", metrics)
	}
	if metrics["risk_detected"] != false || metrics["risk_severity"] != "none" {
		t.Fatalf("failed risk evaluator must yield zero-value metrics: %v", metrics)
	}
	if metrics["qa_score"] != 0 {
		t.Fatalf("panicked qa evaluator must yield zero qa_score: %v", metrics)
	}
}

func TestAnalyzeDeterministicWithFallback(t *testing.T) {
	transcript := "I want to cancel immediately, your billing is always wrong"

	run := func() []byte {
		o := NewDefault(llm.NewFallbackInvoker(zerolog.Nop()), nil, zerolog.Nop())
		results := o.Analyze(context.Background(), transcript)
		b, err := json.Marshal(results["summary_metrics"])
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	first := run()
	for i := 0; i < 5; i++ {
		if next := run(); string(next) != string(first) {
			t.Fatalf("summary metrics must be deterministic:\n%s\n%s", first, next)
		}
	}
}

func TestAnalyzeFallbackChurnScenario(t *testing.T) {
	o := NewDefault(llm.NewFallbackInvoker(zerolog.Nop()), nil, zerolog.Nop())
	results := o.Analyze(context.Background(), "I want to cancel immediately, your billing is always wrong")

	metrics := results["summary_metrics"].(map[string]any)
	if metrics["risk_detected"] != true || metrics["risk_severity"] != "high" {
		t.Fatalf("churn transcript must flag high risk: %v", metrics)
	}
	score := metrics["sentiment_score"].(int)
	if score >= 0 {
		t.Fatalf("churn transcript must score negative, got %d", score)
	}
	if _, ok := results["summary"].(string); !ok {
		t.Fatalf("expected human-readable summary, got %T", results["summary"])
	}
}
