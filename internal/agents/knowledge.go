package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const knowledgeRole = "You retrieve the internal policy and SOP passages that apply to the issues " +
	"raised on a customer call, citing document id, version, and section."

const knowledgePromptTmpl = `Retrieve the policy passages relevant to these extracted issues.

Issues:
%s

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "grounding_context": [
    {
      "doc_id": "SOP-2024-001",
      "version": "1.2",
      "section": "§3.2",
      "content": "Billing disputes must be escalated within 24 hours.",
      "effective_from": "2024-01-01",
      "related_issue_id": "issue_1"
    }
  ],
  "confidence": 0.8
}

Rules: every entry must reference one of the issue ids above via
related_issue_id. Return an empty grounding_context when no policy applies.`

// KnowledgeRetrieval grounds extracted issues in policy documents.
type KnowledgeRetrieval struct {
	base
}

func NewKnowledgeRetrieval(invoker llm.Invoker, log zerolog.Logger) *KnowledgeRetrieval {
	return &KnowledgeRetrieval{newBase("knowledge_agent", "grounding", llm.TaskKnowledgeRetrieval, knowledgeRole, invoker, log)}
}

func (k *KnowledgeRetrieval) Evaluate(ctx context.Context, transcript string, upstream map[string]any) (map[string]any, error) {
	issues := compactJSON(upstream["issues"])
	raw, err := k.complete(ctx, fmt.Sprintf(knowledgePromptTmpl, issues, transcript), issues+" "+transcript)
	if err != nil {
		return nil, err
	}
	return normalizeKnowledge(raw), nil
}

// normalizeKnowledge keeps only well-formed grounding entries.
func normalizeKnowledge(raw map[string]any) map[string]any {
	entries := []any{}
	if list, ok := listField(raw, "grounding_context"); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if stringField(m, "doc_id", "") == "" || stringField(m, "content", "") == "" {
				continue
			}
			entries = append(entries, m)
		}
	}
	return map[string]any{
		"grounding_context": entries,
		"confidence":        clamp01(floatField(raw, "confidence", 0.5)),
	}
}

// compactJSON renders an upstream value for prompt embedding; unmarshalable
// or absent values render as an empty list.
func compactJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
