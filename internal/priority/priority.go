// Package priority converts validated severity and sentiment into a single
// ranked priority for follow-up queues.
package priority

import (
	"fmt"
	"math"
)

// Priority is the ranked follow-up verdict for one call.
type Priority struct {
	PriorityScore float64 `json:"priority_score"`
	PriorityLevel string  `json:"priority_level"`
	Confidence    float64 `json:"confidence"`
}

const (
	severityWeight  = 0.6
	sentimentWeight = 0.4
)

// Score blends the validated severity (1-5) with customer sentiment
// (-1..1, negative is worse) into a 0..1 priority score:
//
//	score = 0.6*severity/5 + 0.4*(1-sentiment)/2
//
// Levels: P0 at >= 0.75, P1 at >= 0.55, P2 at >= 0.35, else P3. The verdict's
// confidence is the weaker of the two input confidences.
func Score(finalSeverity int, severityConfidence, sentimentScore, sentimentConfidence float64) (Priority, error) {
	if finalSeverity < 1 || finalSeverity > 5 {
		return Priority{}, fmt.Errorf("final severity %d outside [1,5]", finalSeverity)
	}
	if sentimentScore < -1 || sentimentScore > 1 {
		return Priority{}, fmt.Errorf("sentiment score %v outside [-1,1]", sentimentScore)
	}
	if severityConfidence < 0 || severityConfidence > 1 {
		return Priority{}, fmt.Errorf("severity confidence %v outside [0,1]", severityConfidence)
	}
	if sentimentConfidence < 0 || sentimentConfidence > 1 {
		return Priority{}, fmt.Errorf("sentiment confidence %v outside [0,1]", sentimentConfidence)
	}

	severityComponent := round2(float64(finalSeverity) / 5)
	sentimentComponent := round2((1 - sentimentScore) / 2)
	score := clamp01(severityWeight*severityComponent + sentimentWeight*sentimentComponent)

	return Priority{
		PriorityScore: round2(score),
		PriorityLevel: levelFor(score),
		Confidence:    round2(math.Min(severityConfidence, sentimentConfidence)),
	}, nil
}

func levelFor(score float64) string {
	switch {
	case score >= 0.75:
		return "P0"
	case score >= 0.55:
		return "P1"
	case score >= 0.35:
		return "P2"
	default:
		return "P3"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
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
