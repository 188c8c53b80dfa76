package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const issuesRole = "You extract distinct customer-reported issues from call transcripts. " +
	"You never merge separate complaints into one, and you never invent issues."

const issuesPromptTmpl = `Extract every distinct issue the customer reports in this call.

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "issues": [
    {
      "issue_id": "issue_1",
      "issue_text": "Customer was charged twice for the same order",
      "evidence_span": "you charged me twice",
      "confidence": 0.9
    }
  ]
}

Rules: issue ids are issue_1, issue_2, ... in order of first mention.
evidence_span is a verbatim quote from the transcript. confidence is in
[0, 1]. A call with no complaints yields an empty list.`

// IssueExtraction lists the distinct issues a customer raised.
type IssueExtraction struct {
	base
}

func NewIssueExtraction(invoker llm.Invoker, log zerolog.Logger) *IssueExtraction {
	return &IssueExtraction{newBase("issue_extraction_agent", "issues", llm.TaskIssueExtraction, issuesRole, invoker, log)}
}

func issuesPrompt(transcript string) string {
	return fmt.Sprintf(issuesPromptTmpl, transcript)
}

func (e *IssueExtraction) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := e.complete(ctx, issuesPrompt(transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeIssues(raw), nil
}

// normalizeIssues renumbers ids sequentially, drops malformed entries, and
// clamps each confidence into [0, 1].
func normalizeIssues(raw map[string]any) map[string]any {
	issues := []any{}
	if list, ok := listField(raw, "issues"); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			text := stringField(m, "issue_text", "")
			if text == "" {
				continue
			}
			issues = append(issues, map[string]any{
				"issue_id":      fmt.Sprintf("issue_%d", len(issues)+1),
				"issue_text":    text,
				"evidence_span": stringField(m, "evidence_span", ""),
				"confidence":    clamp01(floatField(m, "confidence", 0.5)),
			})
		}
	}
	return map[string]any{"issues": issues}
}
