package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Task identifies one evaluation task. Fallback generation dispatches on the
// declared task kind; only the no-backend invoker path resolves the kind by
// sniffing the prompt text.
type Task string

const (
	TaskSentiment          Task = "sentiment"
	TaskSOPCompliance      Task = "sop_compliance"
	TaskRisk               Task = "risk_analysis"
	TaskQAScore            Task = "qa_score"
	TaskCoaching           Task = "coaching"
	TaskIssueExtraction    Task = "issue_extraction"
	TaskKnowledgeRetrieval Task = "knowledge_retrieval"
	TaskClassification     Task = "classification"
	TaskSeverityValidation Task = "severity_validation"
	TaskInsight            Task = "insight"
)

var negativeWords = []string{
	"angry", "frustrated", "dissatisfied", "problem", "issue",
	"complaint", "wrong", "damaged", "hate", "terrible",
}

var positiveWords = []string{
	"thank", "resolved", "happy", "great", "excellent",
	"appreciate", "good", "helped",
}

var (
	churnWords      = []string{"cancel", "switch", "leave", "competitor", "unsubscribe"}
	legalWords      = []string{"lawsuit", "lawyer", "attorney", "sue", "suing", "court", "legal action"}
	complianceWords = []string{"data breach", "privacy", "profanity", "abuse", "harassment"}
	billingWords    = []string{"billing", "charge", "invoice", "overcharged", "refund"}
)

// taskMarkers resolve a prompt to a task kind. Order matters: later stages
// embed earlier stages' output, so the check for a stage's own schema marker
// must precede markers that also occur in its upstream payload.
var taskMarkers = []struct {
	marker string
	task   Task
}{
	{"business_impact", TaskInsight},
	{"final_severity", TaskSeverityValidation},
	{"proposed_severity", TaskClassification},
	{"doc_id", TaskKnowledgeRetrieval},
	{"evidence_span", TaskIssueExtraction},
	{"escalation_detected", TaskSentiment},
	{"missed_steps", TaskSOPCompliance},
	{"risk_detected", TaskRisk},
	{"critical_fail", TaskQAScore},
	{"actionable_feedback", TaskCoaching},
}

// DetectTask resolves a task kind from free prompt text. Used only by the
// no-backend fallback invoker; live callers declare their task explicitly.
func DetectTask(prompt string) Task {
	lower := strings.ToLower(prompt)
	for _, m := range taskMarkers {
		if strings.Contains(lower, m.marker) {
			return m.task
		}
	}
	switch {
	case strings.Contains(lower, "sentiment"):
		return TaskSentiment
	case strings.Contains(lower, "risk"):
		return TaskRisk
	case strings.Contains(lower, "compliance"):
		return TaskSOPCompliance
	default:
		return TaskSentiment
	}
}

// FallbackInvoker synthesizes structurally valid JSON for every task from
// transcript keywords. It never fails and is used whenever no model backend
// is reachable.
type FallbackInvoker struct {
	log zerolog.Logger
}

func NewFallbackInvoker(log zerolog.Logger) *FallbackInvoker {
	return &FallbackInvoker{log: log}
}

func (f *FallbackInvoker) Invoke(_ context.Context, prompt, _ string) (string, error) {
	task := DetectTask(prompt)
	out := GenerateFallback(task, prompt)
	payload, err := json.Marshal(out)
	if err != nil {
		// Generated maps hold only JSON-safe values, so this is unreachable;
		// return an empty object rather than surfacing an error.
		return "{}", nil
	}
	f.log.Debug().Str("task", string(task)).Msg("fallback response generated")
	return string(payload), nil
}

// GenerateFallback is the tagged-variant dispatch: one pure, deterministic
// generator per task kind, driven by keyword sets over the given text
// (usually the full prompt, which embeds the transcript).
func GenerateFallback(task Task, text string) map[string]any {
	lower := strings.ToLower(text)
	switch task {
	case TaskSentiment:
		return fallbackSentiment(lower)
	case TaskSOPCompliance:
		return fallbackSOP(lower)
	case TaskRisk:
		return fallbackRisk(lower)
	case TaskQAScore:
		return fallbackQA(lower)
	case TaskCoaching:
		return fallbackCoaching(lower)
	case TaskIssueExtraction:
		return fallbackIssues(lower)
	case TaskKnowledgeRetrieval:
		return fallbackKnowledge(lower)
	case TaskClassification:
		return fallbackClassification(lower)
	case TaskSeverityValidation:
		return fallbackSeverity(lower)
	case TaskInsight:
		return fallbackInsight(lower)
	default:
		return fallbackSentiment(lower)
	}
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func containsAny(text string, words []string) bool {
	return countMatches(text, words) > 0
}

func fallbackSentimentScore(lower string) int {
	neg := countMatches(lower, negativeWords)
	pos := countMatches(lower, positiveWords)
	switch {
	case neg > pos:
		return -65
	case pos > neg:
		return 55
	default:
		return 10
	}
}

func sentimentLabelFor(score int) string {
	switch {
	case score > 20:
		return "Positive"
	case score < -20:
		return "Negative"
	default:
		return "Neutral"
	}
}

func fallbackSentiment(lower string) map[string]any {
	score := fallbackSentimentScore(lower)
	label := sentimentLabelFor(score)
	trajectory := make([]any, 0, 3)
	for _, phase := range []string{"Opening", "Middle", "Closing"} {
		trajectory = append(trajectory, map[string]any{
			"phase": phase,
			"score": score,
			"label": label,
		})
	}
	return map[string]any{
		"score":               score,
		"label":               label,
		"trajectory":          trajectory,
		"escalation_detected": score < -50,
	}
}

// sopStepHints maps each default SOP step to keywords that count as evidence
// of the step being performed.
var sopStepHints = []struct {
	step  string
	hints []string
}{
	{"Professional Greeting", []string{"hello", "hi ", "good morning", "good afternoon", "thank you for calling"}},
	{"Customer Verification", []string{"verify", "account number", "date of birth", "confirm your"}},
	{"Empathetic Response", []string{"sorry", "understand", "apologize", "i hear you"}},
	{"Solution Provided", []string{"resolved", "fixed", "solution", "refund", "replacement", "escalate"}},
	{"Proper Closing", []string{"anything else", "have a great", "goodbye", "thanks for calling"}},
}

func fallbackSOP(lower string) map[string]any {
	checklist := make([]any, 0, len(sopStepHints))
	missed := []any{}
	passed := 0
	for _, h := range sopStepHints {
		status := "fail"
		evidence := "no matching phrase found"
		for _, hint := range h.hints {
			if strings.Contains(lower, hint) {
				status = "pass"
				evidence = "transcript mentions " + strconv.Quote(hint)
				passed++
				break
			}
		}
		if status == "fail" {
			missed = append(missed, h.step)
		}
		checklist = append(checklist, map[string]any{
			"step":     h.step,
			"status":   status,
			"evidence": evidence,
		})
	}
	adherence := passed * 100 / len(sopStepHints)
	return map[string]any{
		"adherence_score": adherence,
		"compliant":       adherence >= 80,
		"missed_steps":    missed,
		"checklist":       checklist,
	}
}

func fallbackRisk(lower string) map[string]any {
	negative := countMatches(lower, negativeWords) > countMatches(lower, positiveWords)
	flags := []any{}
	severity := "none"

	raise := func(level string) {
		order := map[string]int{"none": 0, "low": 1, "medium": 2, "high": 3, "critical": 4}
		if order[level] > order[severity] {
			severity = level
		}
	}

	if containsAny(lower, churnWords) {
		level := "medium"
		if negative {
			level = "high"
		}
		flags = append(flags, map[string]any{
			"category":   "Churn",
			"confidence": "high",
			"quote":      firstMatch(lower, churnWords),
		})
		raise(level)
	}
	if containsAny(lower, legalWords) {
		flags = append(flags, map[string]any{
			"category":   "Legal",
			"confidence": "high",
			"quote":      firstMatch(lower, legalWords),
		})
		raise("high")
	}
	if containsAny(lower, complianceWords) {
		flags = append(flags, map[string]any{
			"category":   "Compliance",
			"confidence": "medium",
			"quote":      firstMatch(lower, complianceWords),
		})
		raise("medium")
	}

	detected := len(flags) > 0
	summary := "No critical risk markers found"
	if detected {
		summary = "Keyword scan flagged " + strconv.Itoa(len(flags)) + " risk marker(s)"
	}
	return map[string]any{
		"risk_detected": detected,
		"severity":      severity,
		"flags":         flags,
		"summary":       summary,
	}
}

func firstMatch(text string, words []string) string {
	for _, w := range words {
		if strings.Contains(text, w) {
			return w
		}
	}
	return ""
}

func fallbackQA(lower string) map[string]any {
	positive := countMatches(lower, positiveWords) > countMatches(lower, negativeWords)
	breakdown := map[string]any{
		"greeting":   7,
		"empathy":    10,
		"solution":   20,
		"efficiency": 7,
		"compliance": 14,
	}
	if positive {
		breakdown["empathy"] = 16
		breakdown["solution"] = 32
	}
	total := 0
	for _, v := range breakdown {
		total += v.(int)
	}
	return map[string]any{
		"total_score":   total,
		"breakdown":     breakdown,
		"critical_fail": false,
		"comments":      "Heuristic assessment derived from transcript keywords",
	}
}

func fallbackCoaching(lower string) map[string]any {
	weaknesses := []any{
		"Probe for the underlying cause before proposing a fix",
		"Summarize agreed next steps before closing",
		"Confirm customer identity earlier in the call",
	}
	if countMatches(lower, negativeWords) > countMatches(lower, positiveWords) {
		weaknesses = []any{
			"De-escalate frustrated customers before problem solving",
			"Acknowledge the customer's complaint explicitly",
			"Offer a concrete remediation timeline",
		}
	}
	return map[string]any{
		"strengths": []any{
			"Kept a professional tone throughout the call",
			"Stayed on topic and avoided dead air",
			"Followed the call structure end to end",
		},
		"weaknesses":           weaknesses,
		"actionable_feedback":  "Restate the customer's issue in your own words before offering a solution.",
		"recommended_training": []any{"Active Listening", "Objection Handling"},
	}
}

func fallbackIssues(lower string) map[string]any {
	issues := []any{}
	if countMatches(lower, negativeWords) > 0 {
		issues = append(issues, map[string]any{
			"issue_id":      "issue_1",
			"issue_text":    "Customer reported dissatisfaction with the service",
			"evidence_span": firstMatch(lower, negativeWords),
			"confidence":    0.85,
		})
	}
	if containsAny(lower, billingWords) {
		issues = append(issues, map[string]any{
			"issue_id":      "issue_" + strconv.Itoa(len(issues)+1),
			"issue_text":    "Customer reported a billing discrepancy",
			"evidence_span": firstMatch(lower, billingWords),
			"confidence":    0.80,
		})
	}
	return map[string]any{"issues": issues}
}

var issueIDPattern = regexp.MustCompile(`"issue_id"\s*:\s*"([^"]+)"`)
var proposedSeverityPattern = regexp.MustCompile(`"proposed_severity"\s*:\s*([0-9.]+)`)

// promptIssueIDs extracts the unique upstream issue ids embedded in a prompt,
// in order of first appearance.
func promptIssueIDs(text string) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, m := range issueIDPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}
	return ids
}

func fallbackClassification(lower string) map[string]any {
	category := "Customer Support"
	severity := 0.4
	if containsAny(lower, billingWords) {
		category = "Billing / Pricing"
	}
	if countMatches(lower, negativeWords) > countMatches(lower, positiveWords) {
		severity = 0.7
	}

	ids := promptIssueIDs(lower)
	if len(ids) == 0 {
		return map[string]any{"classified_issues": []any{}}
	}
	classified := make([]any, 0, len(ids))
	for _, id := range ids {
		classified = append(classified, map[string]any{
			"issue_id":          id,
			"category":          category,
			"proposed_severity": severity,
			"confidence":        0.82,
		})
	}
	return map[string]any{"classified_issues": classified}
}

// SeverityFromProposed buckets a [0,1] proposed severity onto the 1-5
// integer scale used by severity validation.
func SeverityFromProposed(proposed float64) int {
	if proposed < 0 {
		proposed = 0
	}
	if proposed > 1 {
		proposed = 1
	}
	sev := 1 + int(proposed*4+0.5)
	if sev > 5 {
		sev = 5
	}
	return sev
}

func fallbackSeverity(lower string) map[string]any {
	ids := promptIssueIDs(lower)
	proposed := proposedSeverityPattern.FindAllStringSubmatch(lower, -1)
	validated := make([]any, 0, len(ids))
	for i, id := range ids {
		p := 0.5
		if i < len(proposed) {
			if v, err := strconv.ParseFloat(proposed[i][1], 64); err == nil {
				p = v
			}
		}
		validated = append(validated, map[string]any{
			"issue_id":       id,
			"final_severity": SeverityFromProposed(p),
			"validated":      true,
			"confidence":     0.75,
			"justification":  "Derived from proposed severity; no grounding contradiction found",
		})
	}
	return map[string]any{"validated_severity": validated}
}

func fallbackKnowledge(lower string) map[string]any {
	if !containsAny(lower, billingWords) {
		return map[string]any{"grounding_context": []any{}, "confidence": 0.5}
	}
	related := "issue_1"
	if ids := promptIssueIDs(lower); len(ids) > 0 {
		related = ids[0]
	}
	return map[string]any{
		"grounding_context": []any{
			map[string]any{
				"doc_id":           "SOP-2024-001",
				"version":          "1.2",
				"section":          "§3.2",
				"content":          "Billing disputes must be acknowledged on the call and escalated to the billing team within 24 hours.",
				"effective_from":   "2024-01-01",
				"related_issue_id": related,
			},
		},
		"confidence": 0.8,
	}
}

func fallbackInsight(lower string) map[string]any {
	if countMatches(lower, negativeWords) > countMatches(lower, positiveWords) {
		return map[string]any{
			"insights":            "Unresolved customer dissatisfaction detected; recurring complaint signals in the transcript.",
			"recommended_actions": []any{"Follow up with the customer within 24 hours", "Review the call with the agent's team lead"},
			"business_impact":     "Elevated churn risk if the complaint is not resolved",
		}
	}
	return map[string]any{
		"insights":            "Call handled within expected parameters; no critical weaknesses detected.",
		"recommended_actions": []any{"No immediate action required"},
		"business_impact":     "Standard interaction",
	}
}
