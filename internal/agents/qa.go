package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

// qaDimensions are the scored call-quality dimensions and their maximum
// points. The maxima sum to 100.
var qaDimensions = []struct {
	name string
	max  int
}{
	{"greeting", 10},
	{"empathy", 20},
	{"solution", 40},
	{"efficiency", 10},
	{"compliance", 20},
}

const qaRole = "You are a call-quality assessor. You grade agent performance on a weighted " +
	"rubric totalling 100 points."

const qaPromptTmpl = `Grade the agent's performance on this call.

Rubric (maximum points): greeting 10, empathy 20, solution 40, efficiency 10, compliance 20.

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "total_score": 78,
  "breakdown": {"greeting": 8, "empathy": 15, "solution": 30, "efficiency": 8, "compliance": 17},
  "critical_fail": false,
  "comments": "Strong resolution, identity check was skipped"
}

Rules: each breakdown value stays within its maximum, total_score is the sum
of the breakdown. critical_fail is true only for rudeness, a privacy breach,
or misinformation that harms the customer.`

// QAScore grades agent performance on a fixed 100-point rubric.
type QAScore struct {
	base
}

func NewQAScore(invoker llm.Invoker, log zerolog.Logger) *QAScore {
	return &QAScore{newBase("qa_score_agent", "qa_score", llm.TaskQAScore, qaRole, invoker, log)}
}

func qaPrompt(transcript string) string {
	return fmt.Sprintf(qaPromptTmpl, transcript)
}

func (q *QAScore) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := q.complete(ctx, qaPrompt(transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeQA(raw), nil
}

// normalizeQA keeps total_score and breakdown consistent. With a breakdown
// present, each dimension is clamped to its rubric maximum and the total is
// recomputed as their sum. Without one, a model-supplied total_score is kept
// (clamped to 0-100) and spread across the dimensions in proportion to their
// maxima; when both are absent the total defaults to the 50-point midpoint.
func normalizeQA(raw map[string]any) map[string]any {
	breakdown, hasBreakdown := mapField(raw, "breakdown")

	var normalized map[string]any
	total := 0
	if hasBreakdown {
		normalized = map[string]any{}
		for _, dim := range qaDimensions {
			v := intField(breakdown, dim.name, 0)
			if v < 0 {
				v = 0
			}
			if v > dim.max {
				v = dim.max
			}
			normalized[dim.name] = v
			total += v
		}
	} else {
		total = intField(raw, "total_score", 50)
		if total < 0 {
			total = 0
		}
		if total > 100 {
			total = 100
		}
		normalized = splitQAScore(total)
	}

	return map[string]any{
		"total_score":   total,
		"breakdown":     normalized,
		"critical_fail": boolField(raw, "critical_fail", false),
		"comments":      stringField(raw, "comments", "No assessor comments"),
	}
}

// splitQAScore distributes a 0-100 total across the rubric dimensions in
// proportion to their maxima. Allocation is by rounded cumulative share, so
// the parts always sum back to the total and each stays within its maximum.
func splitQAScore(total int) map[string]any {
	out := map[string]any{}
	cum, allocated := 0, 0
	for _, dim := range qaDimensions {
		cum += dim.max
		target := (total*cum + 50) / 100
		out[dim.name] = target - allocated
		allocated = target
	}
	return out
}
