// Package validation checks a fully analyzed call document before it leaves
// the pipeline: per-section schema validation, cross-section issue-id
// consistency, and a severity-versus-priority sanity check. On success it
// returns a sanitized deep copy; the input is never mutated.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// requiredFields are the sections every analyzed-call document must carry,
// in reporting order.
var requiredFields = []string{"issues", "classified_issues", "validated_severity", "sentiment", "priority"}

// Validate checks an analyzed-call document. It reports whether the document
// is valid, the list of validation errors, and — only when there are zero
// errors — a sanitized deep copy with final_severity values coerced to
// integers.
func Validate(v any) (bool, []string, map[string]any) {
	doc, err := deepCopy(v)
	if err != nil {
		return false, []string{fmt.Sprintf("Not a JSON document: %v", err)}, nil
	}

	var errs []string
	for _, field := range requiredFields {
		if _, ok := doc[field]; !ok {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	for _, field := range requiredFields {
		value, ok := doc[field]
		if !ok {
			continue
		}
		if err := compiledSchemas[field].Validate(value); err != nil {
			errs = append(errs, schemaErrors(field, err)...)
		}
	}

	errs = append(errs, crossConsistency(doc)...)
	errs = append(errs, severityPriorityConsistency(doc)...)

	if len(errs) > 0 {
		return false, errs, nil
	}
	return true, nil, sanitize(doc)
}

// deepCopy round-trips the document through JSON, which both detaches it from
// the caller's value and normalizes numbers to float64 for schema checks.
func deepCopy(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// schemaErrors flattens a jsonschema validation error into one message per
// leaf cause.
func schemaErrors(field string, err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("Invalid %s: %v", field, err)}
	}
	var out []string
	for _, leaf := range leafCauses(ve) {
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			out = append(out, fmt.Sprintf("Invalid %s: %s", field, leaf.Message))
		} else {
			out = append(out, fmt.Sprintf("Invalid %s[%s]: %s", field, loc, leaf.Message))
		}
	}
	return out
}

func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}

// crossConsistency requires set-equality of issue ids across the extraction,
// classification, and severity-validation sections, with distinct messages
// for missing and extra entries.
func crossConsistency(doc map[string]any) []string {
	extracted := idSet(doc, "issues")
	classified := idSet(doc, "classified_issues")
	validated := idSet(doc, "validated_severity")

	var errs []string
	if missing := setDiff(extracted, classified); len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("Missing classified issues for: %s", strings.Join(missing, ", ")))
	}
	if extra := setDiff(classified, extracted); len(extra) > 0 {
		errs = append(errs, fmt.Sprintf("Extra classified issues found: %s", strings.Join(extra, ", ")))
	}
	if missing := setDiff(classified, validated); len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("Missing severity validation for: %s", strings.Join(missing, ", ")))
	}
	if extra := setDiff(validated, classified); len(extra) > 0 {
		errs = append(errs, fmt.Sprintf("Extra severity validation found: %s", strings.Join(extra, ", ")))
	}
	return errs
}

func idSet(doc map[string]any, field string) map[string]struct{} {
	out := map[string]struct{}{}
	list, ok := doc[field].([]any)
	if !ok {
		return out
	}
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			if id, ok := m["issue_id"].(string); ok && id != "" {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

func setDiff(a, b map[string]struct{}) []string {
	var out []string
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// severityPriorityConsistency flags documents whose priority verdict cannot
// follow from the validated severities: severe issue sets filed as low
// priority, or trivial ones filed as urgent.
func severityPriorityConsistency(doc map[string]any) []string {
	prio, ok := doc["priority"].(map[string]any)
	if !ok {
		return nil
	}
	level, _ := prio["priority_level"].(string)
	list, ok := doc["validated_severity"].([]any)
	if !ok || len(list) == 0 || level == "" {
		return nil
	}

	sum, n := 0.0, 0
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			if f, ok := m["final_severity"].(float64); ok {
				sum += f
				n++
			}
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)

	if avg >= 4.5 && (level == "P2" || level == "P3") {
		return []string{fmt.Sprintf("Inconsistent: avg_severity=%.2f but priority=%s", avg, level)}
	}
	if avg <= 2.0 && (level == "P0" || level == "P1") {
		return []string{fmt.Sprintf("Inconsistent: avg_severity=%.2f but priority=%s", avg, level)}
	}
	return nil
}

// sanitize coerces final_severity values back to integers on the already
// deep-copied document. Only whole numbers reach this point (the schema
// rejects fractional severities), so the coercion changes type, not value.
func sanitize(doc map[string]any) map[string]any {
	if list, ok := doc["validated_severity"].([]any); ok {
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				if f, ok := m["final_severity"].(float64); ok {
					m["final_severity"] = int(f)
				}
			}
		}
	}
	return doc
}
