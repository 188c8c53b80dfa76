package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

// DefaultSOPSteps is the procedure checklist evaluated when the caller
// supplies no custom playbook.
var DefaultSOPSteps = []string{
	"Professional Greeting",
	"Customer Verification",
	"Empathetic Response",
	"Solution Provided",
	"Proper Closing",
}

const sopRole = "You are a call-center compliance auditor. You check a call transcript " +
	"against the standard operating procedure and report which steps were performed."

const sopPromptTmpl = `Audit this call transcript against the standard operating procedure.

SOP steps, in order:
%s

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "adherence_score": 60,
  "compliant": false,
  "missed_steps": ["Customer Verification", "Proper Closing"],
  "checklist": [
    {"step": "Professional Greeting", "status": "pass", "evidence": "agent opened with a greeting"},
    {"step": "Customer Verification", "status": "fail", "evidence": "identity never confirmed"}
  ]
}

Rules: checklist covers every SOP step in order with status pass or fail and a
short evidence quote. adherence_score is the percentage of passed steps.
compliant is true when adherence_score is at least 80.`

// SOPCompliance audits a transcript against an ordered procedure checklist.
type SOPCompliance struct {
	base
	steps []string
}

func NewSOPCompliance(invoker llm.Invoker, log zerolog.Logger, steps []string) *SOPCompliance {
	if len(steps) == 0 {
		steps = DefaultSOPSteps
	}
	return &SOPCompliance{
		base:  newBase("sop_compliance_agent", "sop_compliance", llm.TaskSOPCompliance, sopRole, invoker, log),
		steps: steps,
	}
}

func sopPrompt(steps []string, transcript string) string {
	return fmt.Sprintf(sopPromptTmpl, bulletList(steps), transcript)
}

func (s *SOPCompliance) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := s.complete(ctx, sopPrompt(s.steps, transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeSOP(raw, s.steps), nil
}

func bulletList(items []string) string {
	out := ""
	for i, it := range items {
		out += fmt.Sprintf("%d. %s\n", i+1, it)
	}
	return out
}

// normalizeSOP rebuilds the checklist over the configured steps, recomputes
// the adherence score from pass counts, and derives missed_steps and the
// compliant flag from the result. The model's per-step verdicts are kept when
// present; everything aggregate is recomputed.
func normalizeSOP(raw map[string]any, steps []string) map[string]any {
	verdicts := map[string]map[string]any{}
	if list, ok := listField(raw, "checklist"); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if step := stringField(m, "step", ""); step != "" {
				verdicts[step] = m
			}
		}
	}

	checklist := make([]any, 0, len(steps))
	missed := []any{}
	passed := 0
	for _, step := range steps {
		status := "fail"
		evidence := "not assessed"
		if m, ok := verdicts[step]; ok {
			if stringField(m, "status", "") == "pass" {
				status = "pass"
			}
			evidence = stringField(m, "evidence", evidence)
		}
		if status == "pass" {
			passed++
		} else {
			missed = append(missed, step)
		}
		checklist = append(checklist, map[string]any{
			"step":     step,
			"status":   status,
			"evidence": evidence,
		})
	}

	adherence := 0
	if len(steps) > 0 {
		adherence = passed * 100 / len(steps)
	}
	return map[string]any{
		"adherence_score": adherence,
		"compliant":       adherence >= 80,
		"missed_steps":    missed,
		"checklist":       checklist,
	}
}
