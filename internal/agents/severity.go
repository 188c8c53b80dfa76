package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const severityRole = "You are the final severity authority for classified customer issues. " +
	"You confirm or adjust each proposed severity against the cited policy context."

const severityPromptTmpl = `Validate the severity of each classified issue against the policy context.

Classified issues:
%s

Policy context:
%s

Respond with JSON in exactly this shape:
{
  "validated_severity": [
    {
      "issue_id": "issue_1",
      "final_severity": 4,
      "validated": true,
      "confidence": 0.8,
      "justification": "Duplicate charge with policy-mandated 24h escalation"
    }
  ]
}

Rules: final_severity is an integer from 1 (cosmetic) to 5 (business
critical). Cover every classified issue exactly once. Lower confidence when
the policy context contradicts the proposal.`

// SeverityValidation confirms or adjusts each issue's severity on the 1-5
// scale. Its output is authoritative for downstream prioritization.
type SeverityValidation struct {
	base
}

func NewSeverityValidation(invoker llm.Invoker, log zerolog.Logger) *SeverityValidation {
	return &SeverityValidation{newBase("severity_validation_agent", "validated_severity", llm.TaskSeverityValidation, severityRole, invoker, log)}
}

func (s *SeverityValidation) Evaluate(ctx context.Context, transcript string, upstream map[string]any) (map[string]any, error) {
	classified := compactJSON(upstream["classified_issues"])
	raw, err := s.complete(ctx, fmt.Sprintf(severityPromptTmpl,
		classified, compactJSON(upstream["grounding_context"])), classified)
	if err != nil {
		return nil, err
	}
	return normalizeSeverity(raw, upstream), nil
}

// normalizeSeverity guarantees one entry per classified issue. Entries the
// model skipped or left out of the 1-5 range fall back to bucketing the
// upstream proposed severity, marked unvalidated.
func normalizeSeverity(raw map[string]any, upstream map[string]any) map[string]any {
	byID := map[string]map[string]any{}
	if list, ok := listField(raw, "validated_severity"); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			id := stringField(m, "issue_id", "")
			if id == "" {
				continue
			}
			if _, dup := byID[id]; dup {
				continue
			}
			byID[id] = m
		}
	}

	validated := []any{}
	if classified, ok := listField(upstream, "classified_issues"); ok {
		for _, entry := range classified {
			cm, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			id := stringField(cm, "issue_id", "")
			if id == "" {
				continue
			}
			proposed := clamp01(floatField(cm, "proposed_severity", 0.5))

			final := 0
			isValidated := false
			confidence := 0.5
			justification := ""
			if m, ok := byID[id]; ok {
				final = intField(m, "final_severity", 0)
				isValidated = boolField(m, "validated", true)
				confidence = clamp01(floatField(m, "confidence", 0.5))
				justification = stringField(m, "justification", "")
			}
			if final < 1 || final > 5 {
				final = llm.SeverityFromProposed(proposed)
				isValidated = false
				justification = "Derived from proposed severity; validator gave no usable verdict"
			}
			if justification == "" {
				justification = "Proposed severity confirmed"
			}

			validated = append(validated, map[string]any{
				"issue_id":       id,
				"final_severity": final,
				"validated":      isValidated,
				"confidence":     confidence,
				"justification":  justification,
			})
		}
	}
	return map[string]any{"validated_severity": validated}
}
