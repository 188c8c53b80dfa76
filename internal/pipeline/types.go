package pipeline

import "github.com/JRiishi/ADK-Customer-Call-Analysis/internal/priority"

// Issue is one extracted customer complaint.
type Issue struct {
	IssueID      string  `json:"issue_id"`
	IssueText    string  `json:"issue_text"`
	EvidenceSpan string  `json:"evidence_span"`
	Confidence   float64 `json:"confidence"`
}

// ClassifiedIssue is an extracted issue with its category verdict.
type ClassifiedIssue struct {
	IssueID          string  `json:"issue_id"`
	Category         string  `json:"category"`
	ProposedSeverity float64 `json:"proposed_severity"`
	Confidence       float64 `json:"confidence"`
}

// ValidatedSeverity is the authoritative severity verdict for one issue.
type ValidatedSeverity struct {
	IssueID       string  `json:"issue_id"`
	FinalSeverity int     `json:"final_severity"`
	Validated     bool    `json:"validated"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}

// GroundingDoc cites the policy passage backing an issue's handling.
type GroundingDoc struct {
	DocID          string `json:"doc_id"`
	Version        string `json:"version,omitempty"`
	Section        string `json:"section,omitempty"`
	Content        string `json:"content"`
	EffectiveFrom  string `json:"effective_from,omitempty"`
	RelatedIssueID string `json:"related_issue_id,omitempty"`
}

// Sentiment is the call-level sentiment on the continuous -1..1 scale used
// by prioritization.
type Sentiment struct {
	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Insight is the executive summary block.
type Insight struct {
	Insights           string   `json:"insights"`
	RecommendedActions []string `json:"recommended_actions"`
	BusinessImpact     string   `json:"business_impact"`
}

// ValidationReport is the output validator's verdict on the assembled result.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// SystemStatus reports how the pipeline run went.
type SystemStatus struct {
	// State is success, partial, or failed.
	State        string   `json:"state"`
	FailedAgents []string `json:"failed_agents,omitempty"`
}

// Result is the complete analyzed-call document the pipeline produces.
type Result struct {
	CallID            string              `json:"call_id,omitempty"`
	Issues            []Issue             `json:"issues"`
	ClassifiedIssues  []ClassifiedIssue   `json:"classified_issues"`
	ValidatedSeverity []ValidatedSeverity `json:"validated_severity"`
	GroundingContext  []GroundingDoc      `json:"grounding_context,omitempty"`
	Sentiment         Sentiment           `json:"sentiment"`
	Priority          priority.Priority   `json:"priority"`
	Insight           *Insight            `json:"insight,omitempty"`
	Validation        ValidationReport    `json:"validation"`
	SystemStatus      SystemStatus        `json:"system_status"`
}

// MaxFinalSeverity is the highest validated severity across all issues, or 1
// for calls with no issues.
func (r *Result) MaxFinalSeverity() (severity int, confidence float64) {
	severity, confidence = 1, 0.5
	for i, v := range r.ValidatedSeverity {
		if i == 0 || v.FinalSeverity > severity {
			severity = v.FinalSeverity
			confidence = v.Confidence
		}
	}
	if severity < 1 {
		severity = 1
	}
	return severity, confidence
}
