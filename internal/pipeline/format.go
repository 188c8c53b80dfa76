package pipeline

// FormatForFrontend flattens a result into the view-model the dashboard
// renders: a 0-100 satisfaction score, a synthesized three-phase trajectory,
// a checklist of classified issues, and a coarse risk banner derived from
// the priority level.
func FormatForFrontend(r *Result) map[string]any {
	score := int((r.Sentiment.Score + 1) / 2 * 100)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	trajectory := []any{
		map[string]any{"phase": "Opening", "score": clampScore100(score - 15)},
		map[string]any{"phase": "Middle", "score": score},
		map[string]any{"phase": "Closing", "score": clampScore100(score + 10)},
	}

	severityByID := map[string]int{}
	for _, v := range r.ValidatedSeverity {
		severityByID[v.IssueID] = v.FinalSeverity
	}
	textByID := map[string]string{}
	for _, iss := range r.Issues {
		textByID[iss.IssueID] = iss.IssueText
	}

	checklist := make([]any, 0, len(r.ClassifiedIssues))
	for _, c := range r.ClassifiedIssues {
		checklist = append(checklist, map[string]any{
			"issue":    textByID[c.IssueID],
			"category": c.Category,
			"severity": severityByID[c.IssueID],
		})
	}

	risk := "low"
	if r.Priority.PriorityLevel == "P0" || r.Priority.PriorityLevel == "P1" {
		risk = "high"
	}

	out := map[string]any{
		"call_id":              r.CallID,
		"satisfaction_score":   score,
		"sentiment_label":      r.Sentiment.Label,
		"sentiment_trajectory": trajectory,
		"checklist":            checklist,
		"priority":             r.Priority.PriorityLevel,
		"risk":                 risk,
		"status":               r.SystemStatus.State,
	}
	if r.Insight != nil {
		out["insights"] = r.Insight.Insights
		out["recommended_actions"] = r.Insight.RecommendedActions
	}
	return out
}

func clampScore100(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
