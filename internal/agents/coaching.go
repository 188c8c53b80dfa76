package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const coachingRole = "You are an agent-performance coach. You turn one call into concrete, " +
	"specific coaching for the agent who handled it."

const coachingPromptTmpl = `Produce coaching feedback for the agent on this call.

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "strengths": ["Kept a calm tone under pressure"],
  "weaknesses": ["Did not restate the customer's request"],
  "actionable_feedback": "Restate the request in your own words before proposing a fix.",
  "recommended_training": ["Active Listening"]
}

Rules: strengths and weaknesses each hold up to three short, specific points
grounded in the transcript. actionable_feedback is a single sentence the
agent can apply on their very next call.`

// Coaching turns a transcript into concrete agent feedback.
type Coaching struct {
	base
}

func NewCoaching(invoker llm.Invoker, log zerolog.Logger) *Coaching {
	return &Coaching{newBase("coaching_agent", "coaching", llm.TaskCoaching, coachingRole, invoker, log)}
}

func coachingPrompt(transcript string) string {
	return fmt.Sprintf(coachingPromptTmpl, transcript)
}

func (c *Coaching) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := c.complete(ctx, coachingPrompt(transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeCoaching(raw), nil
}

func normalizeCoaching(raw map[string]any) map[string]any {
	return map[string]any{
		"strengths":            stringList(raw, "strengths"),
		"weaknesses":           stringList(raw, "weaknesses"),
		"actionable_feedback":  stringField(raw, "actionable_feedback", "No specific feedback generated for this call."),
		"recommended_training": stringList(raw, "recommended_training"),
	}
}

// stringList keeps only the string entries of a list field, tolerating models
// that mix in other types.
func stringList(m map[string]any, key string) []any {
	out := []any{}
	if list, ok := listField(m, key); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
