package validation

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Per-section schemas for the analyzed-call document. Sections are validated
// independently so one malformed block reports without masking the others.
var sectionSchemas = map[string]string{
	"issues": `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["issue_id", "issue_text", "evidence_span", "confidence"],
			"properties": {
				"issue_id": {"type": "string", "minLength": 1},
				"issue_text": {"type": "string", "minLength": 1},
				"evidence_span": {"type": "string"},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}`,
	"classified_issues": `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["issue_id", "category", "proposed_severity"],
			"properties": {
				"issue_id": {"type": "string", "minLength": 1},
				"category": {"enum": [
					"Response Time", "Product Quality", "Customer Support",
					"Technical Issues", "Billing / Pricing", "Delivery / Logistics", "Other"
				]},
				"proposed_severity": {"type": "number", "minimum": 0, "maximum": 1},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}`,
	"validated_severity": `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["issue_id", "final_severity", "validated", "justification"],
			"properties": {
				"issue_id": {"type": "string", "minLength": 1},
				"final_severity": {"type": "integer", "minimum": 1, "maximum": 5},
				"validated": {"type": "boolean"},
				"justification": {"type": "string"},
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}`,
	"sentiment": `{
		"type": "object",
		"required": ["score", "confidence"],
		"properties": {
			"score": {"type": "number", "minimum": -1, "maximum": 1},
			"label": {"enum": ["Positive", "Negative", "Neutral"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
	"priority": `{
		"type": "object",
		"required": ["priority_score", "priority_level"],
		"properties": {
			"priority_score": {"type": "number", "minimum": 0, "maximum": 1},
			"priority_level": {"enum": ["P0", "P1", "P2", "P3"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
}

var compiledSchemas = compileSchemas()

func compileSchemas() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(sectionSchemas))
	for name, src := range sectionSchemas {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name+".json", strings.NewReader(src)); err != nil {
			panic(err)
		}
		out[name] = c.MustCompile(name + ".json")
	}
	return out
}
