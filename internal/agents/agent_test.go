package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

type fakeInvoker struct {
	text string
	err  error
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string) (string, error) {
	return f.text, f.err
}

func TestEvaluateBackendErrorPropagates(t *testing.T) {
	s := NewSentiment(&fakeInvoker{err: llm.ErrBackend}, zerolog.Nop())
	if _, err := s.Evaluate(context.Background(), "hello", nil); !errors.Is(err, llm.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestEvaluateUnavailableBackendFallsBack(t *testing.T) {
	s := NewSentiment(&fakeInvoker{err: llm.ErrBackendUnavailable}, zerolog.Nop())
	out, err := s.Evaluate(context.Background(), "the service was terrible and wrong", nil)
	if err != nil {
		t.Fatalf("unavailable backend must not fail the evaluator: %v", err)
	}
	if out["label"] != "Negative" {
		t.Fatalf("expected keyword fallback to run, got %v", out["label"])
	}
}

func TestEvaluateGarbageResponseBackfills(t *testing.T) {
	s := NewSentiment(&fakeInvoker{text: "I refuse to answer in JSON"}, zerolog.Nop())
	out, err := s.Evaluate(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["score"] != 0 || out["label"] != "Neutral" {
		t.Fatalf("expected neutral defaults, got %v", out)
	}
	if len(out["trajectory"].([]any)) != 3 {
		t.Fatalf("expected synthesized trajectory")
	}
	if out["escalation_detected"] != false {
		t.Fatalf("expected no escalation by default")
	}
}

func TestNormalizeSentimentClampsAndRelabels(t *testing.T) {
	out := normalizeSentiment(map[string]any{"score": float64(250), "label": "ecstatic"})
	if out["score"] != 100 {
		t.Fatalf("expected clamp to 100, got %v", out["score"])
	}
	if out["label"] != "Positive" {
		t.Fatalf("expected label derived from score, got %v", out["label"])
	}
}

func TestNormalizeSentimentEscalationFromScore(t *testing.T) {
	out := normalizeSentiment(map[string]any{"score": float64(-80)})
	if out["escalation_detected"] != true {
		t.Fatalf("score below -50 must imply escalation")
	}
}

func TestNormalizeSOPRecomputesAggregates(t *testing.T) {
	raw := map[string]any{
		"adherence_score": float64(100), // stale, must be recomputed
		"checklist": []any{
			map[string]any{"step": "Professional Greeting", "status": "pass", "evidence": "hello"},
			map[string]any{"step": "Solution Provided", "status": "pass", "evidence": "refund issued"},
		},
	}
	out := normalizeSOP(raw, DefaultSOPSteps)
	if out["adherence_score"] != 40 {
		t.Fatalf("expected 2/5 passed = 40, got %v", out["adherence_score"])
	}
	if out["compliant"] != false {
		t.Fatalf("40%% adherence cannot be compliant")
	}
	if len(out["missed_steps"].([]any)) != 3 {
		t.Fatalf("expected 3 missed steps, got %v", out["missed_steps"])
	}
	if len(out["checklist"].([]any)) != len(DefaultSOPSteps) {
		t.Fatalf("checklist must cover every step")
	}
}

func TestNormalizeSOPEmptyResponse(t *testing.T) {
	out := normalizeSOP(map[string]any{}, DefaultSOPSteps)
	if out["adherence_score"] != 0 || out["compliant"] != false {
		t.Fatalf("empty response must score 0, got %v", out)
	}
}

func TestNormalizeRiskConsistency(t *testing.T) {
	flagged := normalizeRisk(map[string]any{
		"risk_detected": false, // contradicts the flags below
		"severity":      "none",
		"flags": []any{
			map[string]any{"category": "Legal", "confidence": "high", "quote": "my lawyer"},
		},
	})
	if flagged["risk_detected"] != true || flagged["severity"] != "low" {
		t.Fatalf("flags must drive detection, got %v", flagged)
	}

	clean := normalizeRisk(map[string]any{"risk_detected": true, "severity": "catastrophic"})
	if clean["risk_detected"] != false || clean["severity"] != "none" {
		t.Fatalf("no flags means no risk, got %v", clean)
	}
}

func TestNormalizeRiskDropsUnknownFlagCategories(t *testing.T) {
	out := normalizeRisk(map[string]any{
		"severity": "high",
		"flags": []any{
			map[string]any{"category": "Weather", "confidence": "high", "quote": "it was raining"},
			map[string]any{"category": "churn", "confidence": "high", "quote": "closing my account"},
		},
	})
	flags := out["flags"].([]any)
	if len(flags) != 1 {
		t.Fatalf("unknown flag categories must be dropped, got %v", flags)
	}
	if got := flags[0].(map[string]any)["category"]; got != "Churn" {
		t.Fatalf("category must normalize to the canonical spelling, got %v", got)
	}
	if out["risk_detected"] != true || out["severity"] != "high" {
		t.Fatalf("surviving flags keep the call risky, got %v", out)
	}

	none := normalizeRisk(map[string]any{
		"severity": "high",
		"flags": []any{
			map[string]any{"category": "Weather", "confidence": "low", "quote": "it was raining"},
		},
	})
	if none["risk_detected"] != false || none["severity"] != "none" {
		t.Fatalf("a call with only unknown flags carries no risk, got %v", none)
	}
}

func TestNormalizeQASumsBreakdown(t *testing.T) {
	out := normalizeQA(map[string]any{
		"total_score": float64(12), // stale, must be recomputed
		"breakdown": map[string]any{
			"greeting":   float64(8),
			"empathy":    float64(15),
			"solution":   float64(35),
			"efficiency": float64(8),
			"compliance": float64(14),
		},
	})
	if out["total_score"] != 80 {
		t.Fatalf("expected sum 80, got %v", out["total_score"])
	}
}

func TestNormalizeQADefaultsToMidpoint(t *testing.T) {
	out := normalizeQA(map[string]any{})
	if out["total_score"] != 50 {
		t.Fatalf("expected midpoint 50, got %v", out["total_score"])
	}
}

func TestNormalizeQAKeepsModelTotalWithoutBreakdown(t *testing.T) {
	out := normalizeQA(map[string]any{"total_score": float64(78)})
	if out["total_score"] != 78 {
		t.Fatalf("model total_score must survive without a breakdown, got %v", out["total_score"])
	}
	breakdown := out["breakdown"].(map[string]any)
	sum := 0
	for _, dim := range qaDimensions {
		v := breakdown[dim.name].(int)
		if v < 0 || v > dim.max {
			t.Fatalf("%s out of range: %d", dim.name, v)
		}
		sum += v
	}
	if sum != 78 {
		t.Fatalf("breakdown must sum to the kept total, got %d", sum)
	}

	clamped := normalizeQA(map[string]any{"total_score": float64(150)})
	if clamped["total_score"] != 100 {
		t.Fatalf("out-of-range total must clamp to 100, got %v", clamped["total_score"])
	}
}

func TestNormalizeQAClampsDimension(t *testing.T) {
	out := normalizeQA(map[string]any{
		"breakdown": map[string]any{"greeting": float64(99)},
	})
	breakdown := out["breakdown"].(map[string]any)
	if breakdown["greeting"] != 10 {
		t.Fatalf("greeting must clamp to its 10-point maximum, got %v", breakdown["greeting"])
	}
}

func TestNormalizeIssuesRenumbersAndDrops(t *testing.T) {
	out := normalizeIssues(map[string]any{
		"issues": []any{
			map[string]any{"issue_id": "issue_7", "issue_text": "double charge", "confidence": float64(2)},
			map[string]any{"issue_id": "issue_8"}, // no text, dropped
			map[string]any{"issue_text": "late delivery"},
		},
	})
	issues := out["issues"].([]any)
	if len(issues) != 2 {
		t.Fatalf("expected 2 surviving issues, got %d", len(issues))
	}
	first := issues[0].(map[string]any)
	if first["issue_id"] != "issue_1" {
		t.Fatalf("ids must be renumbered, got %v", first["issue_id"])
	}
	if first["confidence"] != 1.0 {
		t.Fatalf("confidence must clamp to 1, got %v", first["confidence"])
	}
}

func TestNormalizeClassificationSetEquality(t *testing.T) {
	upstream := []string{"issue_1", "issue_2"}
	out := normalizeClassification(map[string]any{
		"classified_issues": []any{
			map[string]any{"issue_id": "issue_2", "category": "Billing / Pricing", "proposed_severity": float64(0.9)},
			map[string]any{"issue_id": "issue_9", "category": "Other"}, // unknown id, dropped
		},
	}, upstream)
	classified := out["classified_issues"].([]any)
	if len(classified) != 2 {
		t.Fatalf("expected exactly the upstream ids, got %d entries", len(classified))
	}
	first := classified[0].(map[string]any)
	if first["issue_id"] != "issue_1" || first["category"] != "Other" {
		t.Fatalf("skipped id must get a placeholder, got %v", first)
	}
	second := classified[1].(map[string]any)
	if second["category"] != "Billing / Pricing" || second["proposed_severity"] != 0.9 {
		t.Fatalf("model verdict must survive, got %v", second)
	}
}

func TestNormalizeClassificationUnknownCategory(t *testing.T) {
	out := normalizeClassification(map[string]any{
		"classified_issues": []any{
			map[string]any{"issue_id": "issue_1", "category": "Weather"},
		},
	}, []string{"issue_1"})
	first := out["classified_issues"].([]any)[0].(map[string]any)
	if first["category"] != "Other" {
		t.Fatalf("unknown category must coerce to Other, got %v", first["category"])
	}
}

func TestNormalizeSeverityCoversEveryIssue(t *testing.T) {
	upstream := map[string]any{
		"classified_issues": []any{
			map[string]any{"issue_id": "issue_1", "proposed_severity": float64(0.9)},
			map[string]any{"issue_id": "issue_2", "proposed_severity": float64(0.1)},
		},
	}
	out := normalizeSeverity(map[string]any{
		"validated_severity": []any{
			map[string]any{"issue_id": "issue_1", "final_severity": float64(3), "validated": true, "confidence": float64(0.9)},
		},
	}, upstream)
	validated := out["validated_severity"].([]any)
	if len(validated) != 2 {
		t.Fatalf("expected one entry per classified issue, got %d", len(validated))
	}
	first := validated[0].(map[string]any)
	if first["final_severity"] != 3 || first["validated"] != true {
		t.Fatalf("validator verdict must survive, got %v", first)
	}
	second := validated[1].(map[string]any)
	if second["final_severity"] != 1 || second["validated"] != false {
		t.Fatalf("skipped issue must bucket 0.1 to severity 1 unvalidated, got %v", second)
	}
}

func TestNormalizeSeverityOutOfRangeBuckets(t *testing.T) {
	upstream := map[string]any{
		"classified_issues": []any{
			map[string]any{"issue_id": "issue_1", "proposed_severity": float64(0.9)},
		},
	}
	out := normalizeSeverity(map[string]any{
		"validated_severity": []any{
			map[string]any{"issue_id": "issue_1", "final_severity": float64(11)},
		},
	}, upstream)
	first := out["validated_severity"].([]any)[0].(map[string]any)
	if first["final_severity"] != 5 {
		t.Fatalf("out-of-range verdict must rebucket 0.9 to 5, got %v", first["final_severity"])
	}
	if first["validated"] != false {
		t.Fatalf("rebucketed entries are unvalidated")
	}
}

func TestPromptsResolveToOwnTask(t *testing.T) {
	inv := &fakeInvoker{err: llm.ErrBackendUnavailable}
	log := zerolog.Nop()
	evaluators := []Evaluator{
		NewSentiment(inv, log),
		NewSOPCompliance(inv, log, nil),
		NewRisk(inv, log),
		NewQAScore(inv, log),
		NewCoaching(inv, log),
		NewIssueExtraction(inv, log),
	}
	tasks := []llm.Task{
		llm.TaskSentiment,
		llm.TaskSOPCompliance,
		llm.TaskRisk,
		llm.TaskQAScore,
		llm.TaskCoaching,
		llm.TaskIssueExtraction,
	}
	for i, ev := range evaluators {
		b := evaluatorBase(ev)
		prompt := promptFor(ev, "the customer said hello")
		if got := llm.DetectTask(prompt); got != tasks[i] {
			t.Fatalf("%s prompt resolves to %q, want %q", b.name, got, tasks[i])
		}
	}
}

// promptFor rebuilds each evaluator's prompt the way Evaluate does, so the
// fallback task sniffing can be checked against the real prompt text.
func promptFor(ev Evaluator, transcript string) string {
	switch e := ev.(type) {
	case *Sentiment:
		return sentimentPrompt(transcript)
	case *SOPCompliance:
		return sopPrompt(e.steps, transcript)
	case *Risk:
		return riskPrompt(transcript)
	case *QAScore:
		return qaPrompt(transcript)
	case *Coaching:
		return coachingPrompt(transcript)
	case *IssueExtraction:
		return issuesPrompt(transcript)
	default:
		return transcript
	}
}

func evaluatorBase(ev Evaluator) *base {
	switch e := ev.(type) {
	case *Sentiment:
		return &e.base
	case *SOPCompliance:
		return &e.base
	case *Risk:
		return &e.base
	case *QAScore:
		return &e.base
	case *Coaching:
		return &e.base
	case *IssueExtraction:
		return &e.base
	default:
		return nil
	}
}
