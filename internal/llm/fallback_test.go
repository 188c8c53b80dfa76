package llm

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

const churnTranscript = "I want to cancel immediately, your billing is always wrong"

func TestFallbackSentimentNegative(t *testing.T) {
	out := GenerateFallback(TaskSentiment, churnTranscript)
	if out["label"] != "Negative" {
		t.Fatalf("expected Negative, got %v", out["label"])
	}
	if out["score"].(int) >= 0 {
		t.Fatalf("expected negative score, got %v", out["score"])
	}
	if out["escalation_detected"] != true {
		t.Fatalf("expected escalation for strongly negative transcript")
	}
	if len(out["trajectory"].([]any)) != 3 {
		t.Fatalf("trajectory must have three phases")
	}
}

func TestFallbackSentimentPositive(t *testing.T) {
	out := GenerateFallback(TaskSentiment, "Thank you so much, you really helped, great service")
	if out["label"] != "Positive" {
		t.Fatalf("expected Positive, got %v", out["label"])
	}
}

func TestFallbackRiskChurnPath(t *testing.T) {
	out := GenerateFallback(TaskRisk, churnTranscript)
	if out["risk_detected"] != true {
		t.Fatalf("expected risk_detected=true")
	}
	if out["severity"] != "high" {
		t.Fatalf("expected severity high, got %v", out["severity"])
	}
	flags := out["flags"].([]any)
	if len(flags) == 0 {
		t.Fatalf("expected at least one flag")
	}
	if flags[0].(map[string]any)["category"] != "Churn" {
		t.Fatalf("expected Churn category, got %v", flags[0])
	}
}

func TestFallbackRiskCleanTranscript(t *testing.T) {
	out := GenerateFallback(TaskRisk, "Thanks for your help, everything is resolved")
	if out["risk_detected"] != false {
		t.Fatalf("expected no risk")
	}
	if out["severity"] != "none" {
		t.Fatalf("expected severity none, got %v", out["severity"])
	}
}

func TestFallbackIssuesEmptyWhenNoComplaint(t *testing.T) {
	out := GenerateFallback(TaskIssueExtraction, "Thank you, that was excellent")
	if len(out["issues"].([]any)) != 0 {
		t.Fatalf("expected empty issue list")
	}
}

func TestFallbackIssuesBilling(t *testing.T) {
	out := GenerateFallback(TaskIssueExtraction, churnTranscript)
	issues := out["issues"].([]any)
	if len(issues) != 2 {
		t.Fatalf("expected dissatisfaction + billing issues, got %d", len(issues))
	}
}

func TestFallbackClassificationEchoesUpstreamIDs(t *testing.T) {
	prompt := `Issues: [{"issue_id": "issue_1"}, {"issue_id": "issue_2"}] billing`
	out := GenerateFallback(TaskClassification, prompt)
	classified := out["classified_issues"].([]any)
	if len(classified) != 2 {
		t.Fatalf("expected 2 classified issues, got %d", len(classified))
	}
	first := classified[0].(map[string]any)
	if first["issue_id"] != "issue_1" {
		t.Fatalf("unexpected id: %v", first["issue_id"])
	}
	if first["category"] != "Billing / Pricing" {
		t.Fatalf("unexpected category: %v", first["category"])
	}
}

func TestFallbackSeverityBucketsProposed(t *testing.T) {
	prompt := `[{"issue_id": "issue_1", "proposed_severity": 0.9}]`
	out := GenerateFallback(TaskSeverityValidation, prompt)
	validated := out["validated_severity"].([]any)
	if len(validated) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(validated))
	}
	entry := validated[0].(map[string]any)
	if entry["final_severity"] != 5 {
		t.Fatalf("0.9 should bucket to 5, got %v", entry["final_severity"])
	}
}

func TestSeverityFromProposed(t *testing.T) {
	cases := map[float64]int{0: 1, 0.1: 1, 0.2: 2, 0.5: 3, 0.7: 4, 0.9: 5, 1: 5, -1: 1, 2: 5}
	for in, want := range cases {
		if got := SeverityFromProposed(in); got != want {
			t.Fatalf("SeverityFromProposed(%v)=%d want %d", in, got, want)
		}
	}
}

func TestDetectTaskByMarker(t *testing.T) {
	cases := map[string]Task{
		`schema: {"escalation_detected": false}`:                 TaskSentiment,
		`schema: {"missed_steps": []}`:                           TaskSOPCompliance,
		`schema: {"risk_detected": true}`:                        TaskRisk,
		`schema: {"critical_fail": false}`:                       TaskQAScore,
		`schema: {"actionable_feedback": ""}`:                    TaskCoaching,
		`schema: {"evidence_span": ""}`:                          TaskIssueExtraction,
		`{"evidence_span": "x"} {"proposed_severity": 0.5}`:      TaskClassification,
		`{"proposed_severity": 0.5} {"final_severity": 3}`:       TaskSeverityValidation,
		`{"doc_id": "SOP-1"} {"evidence_span": "x"}`:             TaskKnowledgeRetrieval,
		`{"final_severity": 4} {"business_impact": "churn"}`:     TaskInsight,
		`please analyze the sentiment of this call`:              TaskSentiment,
	}
	for prompt, want := range cases {
		if got := DetectTask(prompt); got != want {
			t.Fatalf("DetectTask(%q)=%q want %q", prompt, got, want)
		}
	}
}

func TestFallbackInvokerAlwaysParseable(t *testing.T) {
	inv := NewFallbackInvoker(zerolog.Nop())
	prompts := []string{
		`{"escalation_detected"}` + churnTranscript,
		`{"risk_detected"}` + churnTranscript,
		`{"missed_steps"} hello, am I speaking with the account holder?`,
		`{"critical_fail"}`,
		`{"actionable_feedback"}`,
		`{"evidence_span"}`,
		`{"proposed_severity"} {"issue_id": "issue_1"}`,
		`{"final_severity"} {"issue_id": "issue_1"}`,
		`{"doc_id"} billing`,
		`{"business_impact"}`,
		`completely unrelated text`,
	}
	for _, p := range prompts {
		text, err := inv.Invoke(context.Background(), p, "")
		if err != nil {
			t.Fatalf("fallback must never fail: %v", err)
		}
		if _, err := ExtractJSONObject(text); err != nil {
			t.Fatalf("fallback output must parse, prompt %q: %v", p, err)
		}
	}
}
