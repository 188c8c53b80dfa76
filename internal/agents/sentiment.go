package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

const sentimentRole = "You are a customer sentiment analyst for contact-center calls. " +
	"You score the customer's emotional state on an integer scale from -100 (furious) to 100 (delighted)."

const sentimentPromptTmpl = `Analyze the customer's sentiment in this call transcript.

Transcript:
%s

Respond with JSON in exactly this shape:
{
  "score": -65,
  "label": "Negative",
  "trajectory": [
    {"phase": "Opening", "score": -40, "label": "Negative"},
    {"phase": "Middle", "score": -70, "label": "Negative"},
    {"phase": "Closing", "score": -65, "label": "Negative"}
  ],
  "escalation_detected": true
}

Rules: score is an integer in [-100, 100]. label is Positive when score > 20,
Negative when score < -20, otherwise Neutral. trajectory has exactly the
three phases Opening, Middle, Closing. escalation_detected is true when the
customer threatens escalation or the call turns hostile.`

// Sentiment scores the customer's emotional state over the whole call.
type Sentiment struct {
	base
}

func NewSentiment(invoker llm.Invoker, log zerolog.Logger) *Sentiment {
	return &Sentiment{newBase("sentiment_agent", "sentiment", llm.TaskSentiment, sentimentRole, invoker, log)}
}

func sentimentPrompt(transcript string) string {
	return fmt.Sprintf(sentimentPromptTmpl, transcript)
}

func (s *Sentiment) Evaluate(ctx context.Context, transcript string, _ map[string]any) (map[string]any, error) {
	raw, err := s.complete(ctx, sentimentPrompt(transcript), transcript)
	if err != nil {
		return nil, err
	}
	return normalizeSentiment(raw), nil
}

// normalizeSentiment enforces the sentiment contract on an arbitrary parsed
// response: clamp the score, derive the label from the score when absent or
// inconsistent with the scale, and synthesize a flat trajectory when missing.
func normalizeSentiment(raw map[string]any) map[string]any {
	score := intField(raw, "score", 0)
	if score < -100 {
		score = -100
	}
	if score > 100 {
		score = 100
	}

	label := stringField(raw, "label", "")
	switch label {
	case "Positive", "Negative", "Neutral":
	default:
		label = sentimentLabel(score)
	}

	trajectory, ok := listField(raw, "trajectory")
	if !ok || len(trajectory) != 3 {
		trajectory = make([]any, 0, 3)
		for _, phase := range []string{"Opening", "Middle", "Closing"} {
			trajectory = append(trajectory, map[string]any{
				"phase": phase,
				"score": score,
				"label": label,
			})
		}
	}

	escalation := score < -50
	if v, ok := raw["escalation_detected"].(bool); ok {
		escalation = v
	}

	return map[string]any{
		"score":               score,
		"label":               label,
		"trajectory":          trajectory,
		"escalation_detected": escalation,
	}
}

func sentimentLabel(score int) string {
	switch {
	case score > 20:
		return "Positive"
	case score < -20:
		return "Negative"
	default:
		return "Neutral"
	}
}
