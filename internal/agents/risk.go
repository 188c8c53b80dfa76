package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

var riskSeverityOrder = map[string]int{
	"none": 0, "low": 1, "medium": 2, "high": 3, "critical": 4,
}

// riskFlagCategories are the only flag kinds the screener reports.
var riskFlagCategories = []string{"Churn", "Legal", "Compliance"}

const riskRole = "You are a business-risk screener for customer calls. You flag churn threats, " +
	"legal exposure, and compliance incidents with verbatim supporting quotes."

const riskPromptTmpl = `Screen this call transcript for business risk.

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "risk_detected": true,
  "severity": "high",
  "flags": [
    {"category": "Churn", "confidence": "high", "quote": "this is my last month with you"}
  ],
  "summary": "Customer signalled intent to end the relationship over repeated statement mistakes"
}

Rules: severity is one of none, low, medium, high, critical. Categories are
Churn, Legal, or Compliance. Every flag must carry a verbatim quote from the
transcript. When nothing is flagged, severity is none and flags is empty.`

// Risk screens a transcript for churn, legal, and compliance exposure.
type Risk struct {
	base
}

func NewRisk(invoker llm.Invoker, log zerolog.Logger) *Risk {
	return &Risk{newBase("risk_analysis_agent", "risk_analysis", llm.TaskRisk, riskRole, invoker, log)}
}

func riskPrompt(transcript string) string {
	return fmt.Sprintf(riskPromptTmpl, transcript)
}

func (r *Risk) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := r.complete(ctx, riskPrompt(transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeRisk(raw), nil
}

// normalizeRisk keeps risk_detected, severity, and flags mutually consistent:
// flags outside the known category set are dropped, an unknown severity is
// demoted to none, and the surviving flags drive the detected bit whenever
// the two disagree.
func normalizeRisk(raw map[string]any) map[string]any {
	flags := []any{}
	if list, ok := listField(raw, "flags"); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			category, known := riskFlagCategory(stringField(m, "category", ""))
			if !known {
				continue
			}
			m["category"] = category
			flags = append(flags, m)
		}
	}

	severity := stringField(raw, "severity", "none")
	if _, known := riskSeverityOrder[severity]; !known {
		severity = "none"
	}

	detected := len(flags) > 0
	if detected && severity == "none" {
		severity = "low"
	}
	if !detected {
		severity = "none"
	}

	summary := stringField(raw, "summary", "No risk markers reported")
	return map[string]any{
		"risk_detected": detected,
		"severity":      severity,
		"flags":         flags,
		"summary":       summary,
	}
}

// riskFlagCategory maps a reported category onto the canonical set,
// case-insensitively. Unknown categories are rejected.
func riskFlagCategory(category string) (string, bool) {
	for _, known := range riskFlagCategories {
		if strings.EqualFold(strings.TrimSpace(category), known) {
			return known, true
		}
	}
	return "", false
}
