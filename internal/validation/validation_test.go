package validation

import (
	"strings"
	"testing"
)

func validDoc() map[string]any {
	return map[string]any{
		"issues": []any{
			map[string]any{"issue_id": "issue_1", "issue_text": "double charge", "evidence_span": "charged twice", "confidence": 0.9},
		},
		"classified_issues": []any{
			map[string]any{"issue_id": "issue_1", "category": "Billing / Pricing", "proposed_severity": 0.7, "confidence": 0.8},
		},
		"validated_severity": []any{
			map[string]any{
				"issue_id": "issue_1", "final_severity": 4, "validated": true,
				"confidence": 0.8, "justification": "policy mandates escalation for duplicate charges",
			},
		},
		"sentiment": map[string]any{"score": -0.6, "label": "Negative", "confidence": 0.85},
		"priority":  map[string]any{"priority_score": 0.8, "priority_level": "P0", "confidence": 0.8},
	}
}

func TestValidateAcceptsCompleteDocument(t *testing.T) {
	ok, errs, sanitized := Validate(validDoc())
	if !ok {
		t.Fatalf("expected valid, got errors: %v", errs)
	}
	if sanitized == nil {
		t.Fatalf("valid documents must yield a sanitized copy")
	}
	entry := sanitized["validated_severity"].([]any)[0].(map[string]any)
	if entry["final_severity"] != 4 {
		t.Fatalf("final_severity must sanitize to int, got %T %v", entry["final_severity"], entry["final_severity"])
	}
}

func TestValidateMissingField(t *testing.T) {
	doc := validDoc()
	delete(doc, "priority")
	ok, errs, sanitized := Validate(doc)
	if ok || sanitized != nil {
		t.Fatalf("expected invalid without sanitized copy")
	}
	if !containsError(errs, "Missing required field: priority") {
		t.Fatalf("expected missing-field error, got %v", errs)
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	doc := validDoc()
	doc["validated_severity"].([]any)[0].(map[string]any)["final_severity"] = 4.0
	ok, errs, _ := Validate(doc)
	if !ok {
		t.Fatalf("expected valid, got %v", errs)
	}
	if v := doc["validated_severity"].([]any)[0].(map[string]any)["final_severity"]; v != 4.0 {
		t.Fatalf("input document was mutated: %T %v", v, v)
	}
}

func TestValidateMissingClassified(t *testing.T) {
	doc := validDoc()
	doc["issues"] = []any{
		map[string]any{"issue_id": "issue_1", "issue_text": "double charge", "evidence_span": "charged twice", "confidence": 0.9},
		map[string]any{"issue_id": "issue_2", "issue_text": "late delivery", "evidence_span": "a week late", "confidence": 0.8},
	}
	ok, errs, _ := Validate(doc)
	if ok {
		t.Fatalf("expected invalid")
	}
	if !containsError(errs, "Missing classified issues for: issue_2") {
		t.Fatalf("expected missing-classified error, got %v", errs)
	}
}

func TestValidateExtraClassified(t *testing.T) {
	doc := validDoc()
	doc["classified_issues"] = append(doc["classified_issues"].([]any),
		map[string]any{"issue_id": "issue_9", "category": "Other", "proposed_severity": 0.5, "confidence": 0.5})
	ok, errs, _ := Validate(doc)
	if ok {
		t.Fatalf("expected invalid")
	}
	if !containsError(errs, "Extra classified issues found: issue_9") {
		t.Fatalf("expected extra-classified error, got %v", errs)
	}
	if !containsError(errs, "Missing severity validation for: issue_9") {
		t.Fatalf("expected missing-validation error, got %v", errs)
	}
}

func TestValidateSchemaViolation(t *testing.T) {
	doc := validDoc()
	doc["sentiment"] = map[string]any{"score": 3.5, "confidence": 0.9}
	ok, errs, _ := Validate(doc)
	if ok {
		t.Fatalf("expected invalid")
	}
	if !containsError(errs, "Invalid sentiment") {
		t.Fatalf("expected sentiment schema error, got %v", errs)
	}
}

func TestValidateBadCategory(t *testing.T) {
	doc := validDoc()
	doc["classified_issues"].([]any)[0].(map[string]any)["category"] = "Weather"
	if ok, errs, _ := Validate(doc); ok {
		t.Fatalf("unknown category must fail, got valid")
	} else if !containsError(errs, "Invalid classified_issues") {
		t.Fatalf("expected category schema error, got %v", errs)
	}
}

func TestValidateRejectsFractionalSeverity(t *testing.T) {
	doc := validDoc()
	doc["validated_severity"].([]any)[0].(map[string]any)["final_severity"] = 3.5
	ok, errs, sanitized := Validate(doc)
	if ok || sanitized != nil {
		t.Fatalf("fractional final_severity must be rejected, got valid (errs=%v)", errs)
	}
	if !containsError(errs, "Invalid validated_severity") {
		t.Fatalf("expected severity schema error, got %v", errs)
	}
}

func TestValidateRequiresSeverityJustification(t *testing.T) {
	doc := validDoc()
	delete(doc["validated_severity"].([]any)[0].(map[string]any), "justification")
	if ok, errs, _ := Validate(doc); ok {
		t.Fatalf("severity entry without justification must fail")
	} else if !containsError(errs, "Invalid validated_severity") {
		t.Fatalf("expected severity schema error, got %v", errs)
	}
}

func TestValidateSeverityPriorityMismatch(t *testing.T) {
	doc := validDoc()
	doc["validated_severity"].([]any)[0].(map[string]any)["final_severity"] = 5
	doc["priority"] = map[string]any{"priority_score": 0.3, "priority_level": "P3", "confidence": 0.8}
	ok, errs, _ := Validate(doc)
	if ok {
		t.Fatalf("expected invalid")
	}
	if !containsError(errs, "Inconsistent: avg_severity=5.00 but priority=P3") {
		t.Fatalf("expected inconsistency error, got %v", errs)
	}
}

func TestValidateLowSeverityHighPriorityMismatch(t *testing.T) {
	doc := validDoc()
	doc["validated_severity"].([]any)[0].(map[string]any)["final_severity"] = 1
	ok, errs, _ := Validate(doc)
	if ok {
		t.Fatalf("expected invalid")
	}
	if !containsError(errs, "Inconsistent: avg_severity=1.00 but priority=P0") {
		t.Fatalf("expected inconsistency error, got %v", errs)
	}
}

func TestValidateEmptyCallIsValid(t *testing.T) {
	doc := map[string]any{
		"issues":             []any{},
		"classified_issues":  []any{},
		"validated_severity": []any{},
		"sentiment":          map[string]any{"score": 0.4, "label": "Positive", "confidence": 0.7},
		"priority":           map[string]any{"priority_score": 0.2, "priority_level": "P3", "confidence": 0.7},
	}
	if ok, errs, _ := Validate(doc); !ok {
		t.Fatalf("a clean call with no issues must validate, got %v", errs)
	}
}

func containsError(errs []string, want string) bool {
	for _, e := range errs {
		if strings.Contains(e, want) {
			return true
		}
	}
	return false
}
