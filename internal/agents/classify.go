package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

// Categories is the closed issue-category vocabulary. Anything a model
// returns outside this set is coerced to Other.
var Categories = []string{
	"Response Time",
	"Product Quality",
	"Customer Support",
	"Technical Issues",
	"Billing / Pricing",
	"Delivery / Logistics",
	"Other",
}

const classifyRole = "You classify extracted customer issues into a fixed category vocabulary " +
	"and propose a continuous severity for each."

const classifyPromptTmpl = `Classify each of these extracted issues.

Allowed categories: Response Time, Product Quality, Customer Support,
Technical Issues, Billing / Pricing, Delivery / Logistics, Other.

Issues:
%s

Respond with JSON in exactly this shape:
{
  "classified_issues": [
    {
      "issue_id": "issue_1",
      "category": "Billing / Pricing",
      "proposed_severity": 0.7,
      "confidence": 0.85
    }
  ]
}

Rules: classify every issue above, exactly once, keeping its issue_id.
proposed_severity is in [0, 1], where 1 is business-critical. Use Other only
when no listed category fits.`

// Classification assigns each extracted issue a category and a proposed
// severity.
type Classification struct {
	base
}

func NewClassification(invoker llm.Invoker, log zerolog.Logger) *Classification {
	return &Classification{newBase("classification_agent", "classified", llm.TaskClassification, classifyRole, invoker, log)}
}

func (c *Classification) Evaluate(ctx context.Context, transcript string, upstream map[string]any) (map[string]any, error) {
	issues := compactJSON(upstream["issues"])
	raw, err := c.complete(ctx, fmt.Sprintf(classifyPromptTmpl, issues), issues+" "+transcript)
	if err != nil {
		return nil, err
	}
	return normalizeClassification(raw, upstreamIssueIDs(upstream)), nil
}

// upstreamIssueIDs lists the issue ids of an extraction result, in order.
func upstreamIssueIDs(upstream map[string]any) []string {
	var ids []string
	if list, ok := listField(upstream, "issues"); ok {
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				if id := stringField(m, "issue_id", ""); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

// normalizeClassification forces the output into set-equality with the
// upstream issue ids: entries for unknown ids are dropped, duplicate ids keep
// their first entry, and ids the model skipped get an Other / mid-severity
// placeholder. Categories outside the vocabulary become Other.
func normalizeClassification(raw map[string]any, ids []string) map[string]any {
	byID := map[string]map[string]any{}
	if list, ok := listField(raw, "classified_issues"); ok {
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

	classified := make([]any, 0, len(ids))
	for _, id := range ids {
		category := "Other"
		severity := 0.5
		confidence := 0.3
		if m, ok := byID[id]; ok {
			category = normalizeCategory(stringField(m, "category", "Other"))
			severity = clamp01(floatField(m, "proposed_severity", 0.5))
			confidence = clamp01(floatField(m, "confidence", 0.5))
		}
		classified = append(classified, map[string]any{
			"issue_id":          id,
			"category":          category,
			"proposed_severity": severity,
			"confidence":        confidence,
		})
	}
	return map[string]any{"classified_issues": classified}
}

func normalizeCategory(c string) string {
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return "Other"
}
