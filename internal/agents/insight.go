package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const insightRole = "You are a business analyst. You condense a fully analyzed customer call " +
	"into executive insights and recommended actions."

const insightPromptTmpl = `Summarize the business meaning of this analyzed call.

Analysis so far:
%s

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "insights": "Repeated billing failures are eroding trust with a long-tenured customer.",
  "recommended_actions": ["Refund the duplicate charge today", "Audit the billing job for this account"],
  "business_impact": "High churn risk on a high-value account"
}`

// Insight condenses the full analysis into executive takeaways.
type Insight struct {
	base
}

func NewInsight(invoker llm.Invoker, log zerolog.Logger) *Insight {
	return &Insight{newBase("insight_agent", "insight", llm.TaskInsight, insightRole, invoker, log)}
}

func (i *Insight) Evaluate(ctx context.Context, transcript string, upstream map[string]any) (map[string]any, error) {
	analysis := compactJSON(upstream)
	raw, err := i.complete(ctx, fmt.Sprintf(insightPromptTmpl, analysis, transcript), analysis+" "+transcript)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"insights":            stringField(raw, "insights", "No notable findings for this call."),
		"recommended_actions": stringList(raw, "recommended_actions"),
		"business_impact":     stringField(raw, "business_impact", "Standard interaction"),
	}, nil
}
