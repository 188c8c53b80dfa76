// Package pipeline runs the staged deep-analysis chain: issue extraction,
// knowledge grounding, classification, severity validation, prioritization,
// output validation, and executive insight. Sentiment runs concurrently with
// the chain since nothing upstream feeds it. Stage failures degrade the run
// to partial instead of aborting it.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/agents"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/metrics"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/priority"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/validation"
)

// Pipeline is the staged deep-analysis chain over one transcript.
type Pipeline struct {
	extraction *agents.IssueExtraction
	knowledge  *agents.KnowledgeRetrieval
	classify   *agents.Classification
	severity   *agents.SeverityValidation
	sentiment  *agents.Sentiment
	insight    *agents.Insight
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func New(invoker llm.Invoker, m *metrics.Metrics, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		extraction: agents.NewIssueExtraction(invoker, log),
		knowledge:  agents.NewKnowledgeRetrieval(invoker, log),
		classify:   agents.NewClassification(invoker, log),
		severity:   agents.NewSeverityValidation(invoker, log),
		sentiment:  agents.NewSentiment(invoker, log),
		insight:    agents.NewInsight(invoker, log),
		metrics:    m,
		log:        log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the full chain over one transcript.
func (p *Pipeline) Run(ctx context.Context, callID, transcript string) *Result {
	result := &Result{
		CallID:            callID,
		Issues:            []Issue{},
		ClassifiedIssues:  []ClassifiedIssue{},
		ValidatedSeverity: []ValidatedSeverity{},
	}
	var failed []string

	// Sentiment has no upstream dependencies; overlap it with the chain.
	var (
		wg           sync.WaitGroup
		sentimentRaw map[string]any
		sentimentErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				sentimentErr = errFromPanic(r)
			}
		}()
		sentimentRaw, sentimentErr = p.sentiment.Evaluate(ctx, transcript, nil)
	}()

	upstream := map[string]any{}

	issuesRaw, err := p.extraction.Evaluate(ctx, transcript, nil)
	if err != nil {
		p.fail(&failed, p.extraction.Name(), err)
		issuesRaw = map[string]any{"issues": []any{}}
	}
	upstream["issues"] = issuesRaw["issues"]
	decode(issuesRaw["issues"], &result.Issues)

	if len(result.Issues) > 0 {
		groundingRaw, err := p.knowledge.Evaluate(ctx, transcript, upstream)
		if err != nil {
			p.fail(&failed, p.knowledge.Name(), err)
		} else {
			upstream["grounding_context"] = groundingRaw["grounding_context"]
			decode(groundingRaw["grounding_context"], &result.GroundingContext)
		}

		classifiedRaw, err := p.classify.Evaluate(ctx, transcript, upstream)
		if err != nil {
			p.fail(&failed, p.classify.Name(), err)
			classifiedRaw = fallbackClassified(upstream)
		}
		upstream["classified_issues"] = classifiedRaw["classified_issues"]
		decode(classifiedRaw["classified_issues"], &result.ClassifiedIssues)

		severityRaw, err := p.severity.Evaluate(ctx, transcript, upstream)
		if err != nil {
			p.fail(&failed, p.severity.Name(), err)
			severityRaw = fallbackValidated(upstream)
		}
		upstream["validated_severity"] = severityRaw["validated_severity"]
		decode(severityRaw["validated_severity"], &result.ValidatedSeverity)
	}

	wg.Wait()
	if sentimentErr != nil {
		p.fail(&failed, p.sentiment.Name(), sentimentErr)
		result.Sentiment = Sentiment{Score: 0, Label: "Neutral", Confidence: 0.5}
	} else {
		result.Sentiment = toChainSentiment(sentimentRaw)
	}
	upstream["sentiment"] = map[string]any{
		"score":      result.Sentiment.Score,
		"label":      result.Sentiment.Label,
		"confidence": result.Sentiment.Confidence,
	}

	severity, severityConfidence := result.MaxFinalSeverity()
	prio, err := priority.Score(severity, severityConfidence, result.Sentiment.Score, result.Sentiment.Confidence)
	if err != nil {
		// Inputs are normalized upstream, so this indicates a pipeline bug;
		// degrade to the lowest priority rather than dropping the call.
		p.log.Error().Err(err).Msg("priority scoring rejected normalized inputs")
		prio = priority.Priority{PriorityScore: 0, PriorityLevel: "P3", Confidence: 0}
	}
	result.Priority = prio
	upstream["priority"] = map[string]any{
		"priority_score": prio.PriorityScore,
		"priority_level": prio.PriorityLevel,
		"confidence":     prio.Confidence,
	}

	valid, errs, _ := validation.Validate(validationView(result))
	result.Validation = ValidationReport{Valid: valid, Errors: errs}

	insightRaw, err := p.insight.Evaluate(ctx, transcript, upstream)
	if err != nil {
		p.fail(&failed, p.insight.Name(), err)
	} else {
		var ins Insight
		decodeMap(insightRaw, &ins)
		result.Insight = &ins
	}

	noSignal := contains(failed, p.extraction.Name()) && contains(failed, p.sentiment.Name())
	result.SystemStatus = statusFor(failed, noSignal)
	return result
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p *Pipeline) fail(failed *[]string, agent string, err error) {
	p.log.Warn().Err(err).Str("agent", agent).Msg("pipeline stage failed")
	p.metrics.EvaluatorFailed(agent)
	*failed = append(*failed, agent)
}

// statusFor grades the run: success with no failures, failed when both
// signal-bearing stages (extraction and sentiment) are down, partial
// otherwise.
func statusFor(failed []string, noSignal bool) SystemStatus {
	switch {
	case len(failed) == 0:
		return SystemStatus{State: "success"}
	case noSignal:
		return SystemStatus{State: "failed", FailedAgents: failed}
	default:
		return SystemStatus{State: "partial", FailedAgents: failed}
	}
}

// toChainSentiment converts the evaluator's integer -100..100 sentiment onto
// the continuous -1..1 scale the chain scores with. Confidence grows with the
// signal's distance from neutral.
func toChainSentiment(raw map[string]any) Sentiment {
	score := 0.0
	if v, ok := raw["score"]; ok {
		switch n := v.(type) {
		case int:
			score = float64(n)
		case float64:
			score = n
		}
	}
	label, _ := raw["label"].(string)
	if label == "" {
		label = "Neutral"
	}
	return Sentiment{
		Score:      score / 100,
		Label:      label,
		Confidence: clamp01(0.5 + math.Abs(score)/200),
	}
}

// fallbackClassified substitutes a mid-severity Other classification for
// every extracted issue when the classification stage is down.
func fallbackClassified(upstream map[string]any) map[string]any {
	classified := []any{}
	if issues, ok := upstream["issues"].([]any); ok {
		for _, entry := range issues {
			if m, ok := entry.(map[string]any); ok {
				classified = append(classified, map[string]any{
					"issue_id":          m["issue_id"],
					"category":          "Other",
					"proposed_severity": 0.5,
					"confidence":        0.3,
				})
			}
		}
	}
	return map[string]any{"classified_issues": classified}
}

// fallbackValidated buckets each classified issue's proposed severity when
// the validation stage is down.
func fallbackValidated(upstream map[string]any) map[string]any {
	validated := []any{}
	if classified, ok := upstream["classified_issues"].([]any); ok {
		for _, entry := range classified {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			proposed := 0.5
			if f, ok := m["proposed_severity"].(float64); ok {
				proposed = f
			}
			validated = append(validated, map[string]any{
				"issue_id":       m["issue_id"],
				"final_severity": llm.SeverityFromProposed(proposed),
				"validated":      false,
				"confidence":     0.3,
				"justification":  "Severity validator unavailable; bucketed from proposal",
			})
		}
	}
	return map[string]any{"validated_severity": validated}
}

// validationView projects a result onto the document shape the output
// validator checks.
func validationView(r *Result) map[string]any {
	return map[string]any{
		"issues":             r.Issues,
		"classified_issues":  r.ClassifiedIssues,
		"validated_severity": r.ValidatedSeverity,
		"sentiment": map[string]any{
			"score":      r.Sentiment.Score,
			"label":      r.Sentiment.Label,
			"confidence": r.Sentiment.Confidence,
		},
		"priority": map[string]any{
			"priority_score": r.Priority.PriorityScore,
			"priority_level": r.Priority.PriorityLevel,
			"confidence":     r.Priority.Confidence,
		},
	}
}

// decode round-trips a generic value into a typed destination.
func decode(v any, dst any) {
	if v == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, dst)
}

func decodeMap(m map[string]any, dst any) { decode(m, dst) }

func errFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
